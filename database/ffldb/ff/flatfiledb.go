package ff

// FlatFileDB is a flat-file database. It consists of a set of flat-file
// stores, lazily opened on first access, each of which houses data of one
// kind (e.g. blocks, undo data).
type FlatFileDB struct {
	path           string
	flatFileStores map[string]*flatFileStore
}

// NewFlatFileDB opens the flat-file database defined by the given path.
func NewFlatFileDB(path string) *FlatFileDB {
	return &FlatFileDB{
		path:           path,
		flatFileStores: make(map[string]*flatFileStore),
	}
}

// Close closes the flat-file database.
func (ffdb *FlatFileDB) Close() error {
	for _, store := range ffdb.flatFileStores {
		err := store.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Write appends the given data to the flat-file store defined by storeName
// and returns a serialized location handle.
func (ffdb *FlatFileDB) Write(storeName string, data []byte) ([]byte, error) {
	store, err := ffdb.store(storeName)
	if err != nil {
		return nil, err
	}
	location, err := store.write(data)
	if err != nil {
		return nil, err
	}
	return serializeLocation(location), nil
}

// Read retrieves data from the flat-file store defined by storeName using
// the given serialized location handle. It returns ErrNotFound if the
// location does not exist.
func (ffdb *FlatFileDB) Read(storeName string, serializedLocation []byte) ([]byte, error) {
	store, err := ffdb.store(storeName)
	if err != nil {
		return nil, err
	}
	location, err := deserializeLocation(serializedLocation)
	if err != nil {
		return nil, err
	}
	return store.read(location)
}

// CurrentLocation returns the serialized write cursor location of the
// flat-file store defined by storeName.
func (ffdb *FlatFileDB) CurrentLocation(storeName string) ([]byte, error) {
	store, err := ffdb.store(storeName)
	if err != nil {
		return nil, err
	}
	return serializeLocation(store.currentLocation()), nil
}

// Rollback truncates the flat-file store defined by storeName back to the
// given serialized location handle.
func (ffdb *FlatFileDB) Rollback(storeName string, serializedLocation []byte) error {
	store, err := ffdb.store(storeName)
	if err != nil {
		return err
	}
	location, err := deserializeLocation(serializedLocation)
	if err != nil {
		return err
	}
	return store.rollback(location)
}

// store returns the flat-file store for the given name, opening it if it
// hasn't been opened yet.
func (ffdb *FlatFileDB) store(storeName string) (*flatFileStore, error) {
	store, ok := ffdb.flatFileStores[storeName]
	if !ok {
		var err error
		store, err = openFlatFileStore(ffdb.path, storeName)
		if err != nil {
			return nil, err
		}
		ffdb.flatFileStores[storeName] = store
	}
	return store, nil
}
