package envstore

// Store is a persistent variable store. Get reports whether name is set;
// Notify tells other processes that variables changed.
type Store interface {
	Get(name string) (string, bool, error)
	Set(name, value string) error
	Notify() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Profile)(nil)
)
