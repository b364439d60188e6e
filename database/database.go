package database

// Database defines the interface of a database that can begin
// transactions and close itself.
//
// Important: this is not part of the DataAccessor interface
// because the Transaction interface includes it. Were
// this not the case, transactions could have been nested
// within transactions, in which case their behavior would
// have been undefined.
type Database interface {
	DataAccessor

	// Begin begins a new database transaction.
	Begin() (Transaction, error)

	// Close closes the database.
	Close() error
}
