package db

// Table is a named, ordered namespace of a DatabaseProvider. All keys are
// stored under the table prefix; keys passed in and returned are unprefixed.
type Table struct {
	provider DatabaseProvider
	prefix   []byte
}

// NewTable opens the namespace identified by prefix (e.g. "blk:")
func NewTable(provider DatabaseProvider, prefix string) *Table {
	return &Table{provider: provider, prefix: []byte(prefix)}
}

func (t *Table) Prefix() string {
	return string(t.prefix)
}

func (t *Table) Provider() DatabaseProvider {
	return t.provider
}

func (t *Table) key(k []byte) []byte {
	out := make([]byte, len(t.prefix)+len(k))
	copy(out, t.prefix)
	copy(out[len(t.prefix):], k)
	return out
}

func (t *Table) strip(k []byte) []byte {
	if k == nil {
		return nil
	}
	return k[len(t.prefix):]
}

func (t *Table) Get(key []byte) ([]byte, error) {
	return t.provider.Get(t.key(key))
}

func (t *Table) Has(key []byte) (bool, error) {
	return t.provider.Has(t.key(key))
}

func (t *Table) Put(key, value []byte) error {
	return t.provider.Put(t.key(key), value)
}

func (t *Table) Delete(key []byte) error {
	return t.provider.Delete(t.key(key))
}

// First returns the entry with the smallest key, or nil key when the table is empty
func (t *Table) First() ([]byte, []byte, error) {
	k, v, err := t.provider.First(t.prefix)
	return t.strip(k), v, err
}

// Last returns the entry with the largest key, or nil key when the table is empty
func (t *Table) Last() ([]byte, []byte, error) {
	k, v, err := t.provider.Last(t.prefix)
	return t.strip(k), v, err
}

// Lower returns the nearest entry strictly below key. key need not exist.
func (t *Table) Lower(key []byte) ([]byte, []byte, error) {
	k, v, err := t.provider.Lower(t.prefix, t.key(key))
	return t.strip(k), v, err
}

// Higher returns the nearest entry strictly above key. key need not exist.
func (t *Table) Higher(key []byte) ([]byte, []byte, error) {
	k, v, err := t.provider.Higher(t.prefix, t.key(key))
	return t.strip(k), v, err
}

// Iterate walks the table in key order until fn returns false
func (t *Table) Iterate(fn func(key, value []byte) bool) error {
	return t.provider.IteratePrefix(t.prefix, func(k, v []byte) bool {
		return fn(t.strip(k), v)
	})
}

// Batch returns an atomic batch whose keys are scoped to the table
func (t *Table) Batch() DatabaseBatch {
	return &tableBatch{DatabaseBatch: t.provider.Batch(), table: t}
}

type tableBatch struct {
	DatabaseBatch
	table *Table
}

func (b *tableBatch) Put(key, value []byte) {
	b.DatabaseBatch.Put(b.table.key(key), value)
}

func (b *tableBatch) Delete(key []byte) {
	b.DatabaseBatch.Delete(b.table.key(key))
}
