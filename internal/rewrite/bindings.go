package rewrite

// Binding ties an installed toolchain folder under <root>/apps to the
// environment variables that publish its location.
type Binding struct {
	Software string   `yaml:"software" json:"software"`
	Folder   string   `yaml:"folder" json:"folder"`
	Vars     []string `yaml:"vars" json:"vars"`
}

// DefaultBindings is the built-in toolchain table. Maven publishes both
// MAVEN_HOME and the older M2_HOME.
var DefaultBindings = []Binding{
	{Software: "JDK", Folder: "jdk", Vars: []string{"JAVA_HOME"}},
	{Software: "Node.js", Folder: "nodejs", Vars: []string{"NODE_HOME"}},
	{Software: "Maven", Folder: "maven", Vars: []string{"MAVEN_HOME", "M2_HOME"}},
	{Software: "Redis", Folder: "redis", Vars: []string{"REDIS_HOME"}},
	{Software: "Python", Folder: "python", Vars: []string{"PYTHON_HOME"}},
}

// DefaultRootVariable publishes the managed root itself.
const DefaultRootVariable = "DEVENVMANAGER_CONFIG"

// DefaultSearchPathVariables are scanned entry by entry.
var DefaultSearchPathVariables = []string{"PATH"}
