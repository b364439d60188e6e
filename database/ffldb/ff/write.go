package ff

import (
	"hash/crc32"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// lockableFile represents a flat file on disk that has been opened for either
// read or read/write access. It also contains a read-write mutex to support
// multiple concurrent readers.
type lockableFile struct {
	sync.RWMutex
	file *os.File
}

// Close closes the underlying file if it is open.
func (lf *lockableFile) Close() error {
	if lf.file == nil {
		return nil
	}
	err := lf.file.Close()
	lf.file = nil
	return errors.WithStack(err)
}

// write appends the specified raw data bytes to the store's write cursor
// location and increments it accordingly. When the data would exceed the max
// file size for the current flat file, this function will close the current
// file, create the next file, update the write cursor, and write the data to
// the new file.
//
// The write cursor will also be advanced the number of bytes actually written
// in the event of failure.
//
// Format: <data length><data><checksum>
func (s *flatFileStore) write(data []byte) (*flatFileLocation, error) {
	if s.isClosed {
		return nil, errors.Errorf("cannot write to a closed store %s",
			s.storeName)
	}

	// Compute how many bytes will be written.
	// 4 bytes for data length + length of raw data + 4 bytes for checksum.
	dataLength := uint32(len(data))
	fullLength := uint32(dataLengthLength) + dataLength +
		uint32(crc32ChecksumLength)

	// Move to the next file if adding the new data would exceed the max
	// allowed size for the current flat file. Also detect overflow because
	// even though it isn't possible currently, numbers might change in
	// the future to make it possible.
	cursor := s.writeCursor
	cursor.Lock()
	defer cursor.Unlock()

	finalOffset := cursor.currentOffset + fullLength
	if finalOffset < cursor.currentOffset || finalOffset > maxFileSize {
		// This is done under the write cursor lock since the curFileNum
		// field is accessed elsewhere by readers.
		//
		// Close the current write file to force a read-only reopen
		// with LRU tracking. The close is done under the write lock
		// for the file to prevent it from being closed out from under
		// any readers currently reading from it.
		cursor.currentFile.Lock()
		err := cursor.currentFile.Close()
		cursor.currentFile.Unlock()
		if err != nil {
			return nil, err
		}

		// Start writes into next file.
		cursor.currentFileNumber++
		cursor.currentOffset = 0
	}

	// All writes are done under the write lock for the file to ensure any
	// readers are finished and blocked first.
	cursor.currentFile.Lock()
	defer cursor.currentFile.Unlock()

	// Open the current file if needed. This will typically only be the
	// case when moving to the next file to write to or on initial database
	// load.
	if cursor.currentFile.file == nil {
		file, err := s.openWriteFile(cursor.currentFileNumber)
		if err != nil {
			return nil, err
		}
		cursor.currentFile.file = file
	}

	originalOffset := cursor.currentOffset
	hasher := crc32.New(castagnoli)
	var scratch [4]byte

	// Data length.
	byteOrder.PutUint32(scratch[:], dataLength)
	err := s.writeData(scratch[:], "data length")
	if err != nil {
		return nil, err
	}
	_, _ = hasher.Write(scratch[:])

	// Data.
	err = s.writeData(data, "data")
	if err != nil {
		return nil, err
	}
	_, _ = hasher.Write(data)

	// Castagnoli CRC-32 as a checksum of all the previous.
	var checksum [4]byte
	crc32ByteOrder.PutUint32(checksum[:], hasher.Sum32())
	err = s.writeData(checksum[:], "checksum")
	if err != nil {
		return nil, err
	}

	location := &flatFileLocation{
		fileNumber: cursor.currentFileNumber,
		fileOffset: originalOffset,
		dataLength: fullLength,
	}
	return location, nil
}

// openWriteFile returns a file handle for the passed flat file number in
// read/write mode. The file will be created if needed.
func (s *flatFileStore) openWriteFile(fileNumber uint32) (*os.File, error) {
	// The current flat file needs to be read-write so it is possible to
	// append to it. Also, it shouldn't be part of the least recently used
	// file.
	filePath := flatFilePath(s.basePath, s.storeName, fileNumber)
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Errorf("failed to open file %q: %s",
			filePath, err)
	}

	return file, nil
}

// writeData is a helper function for write which writes the provided data at
// the current write offset and updates the write cursor accordingly. The
// fieldName parameter is only used when there is an error to provide a nicer
// error message.
//
// The write cursor will be advanced the number of bytes actually written in
// the event of failure.
//
// NOTE: This function MUST be called with the write cursor current file lock
// held and must only be called during a write transaction so it is effectively
// locked for writes. Also, the write cursor current file must NOT be nil.
func (s *flatFileStore) writeData(data []byte, fieldName string) error {
	cursor := s.writeCursor
	n, err := cursor.currentFile.file.WriteAt(data,
		int64(cursor.currentOffset))
	cursor.currentOffset += uint32(n)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s in store %s to "+
			"file %d at offset %d", fieldName, s.storeName,
			cursor.currentFileNumber, cursor.currentOffset-uint32(n))
	}

	return nil
}

// rollback rolls the flat file store back to the provided location. Any flat
// files after the location's file are deleted, and the location's file is
// truncated to the location's offset. An error is returned when the given
// location is after the current write cursor.
func (s *flatFileStore) rollback(location *flatFileLocation) error {
	if s.isClosed {
		return errors.Errorf("cannot rollback a closed store %s",
			s.storeName)
	}

	cursor := s.writeCursor
	cursor.Lock()
	defer cursor.Unlock()

	if location.fileNumber > cursor.currentFileNumber ||
		(location.fileNumber == cursor.currentFileNumber &&
			location.fileOffset > cursor.currentOffset) {

		return errors.Errorf("cannot rollback store %s to a location "+
			"after the write cursor", s.storeName)
	}

	// Nothing to do when the rollback point matches the current write
	// cursor.
	if location.fileNumber == cursor.currentFileNumber &&
		location.fileOffset == cursor.currentOffset {

		return nil
	}

	// Delete the flat files that are newer than the rollback point.
	s.openFilesMutex.Lock()
	s.lruMutex.Lock()
	for fileNumber := cursor.currentFileNumber; fileNumber > location.fileNumber; fileNumber-- {
		exists, err := s.fileExists(fileNumber)
		if err != nil {
			s.lruMutex.Unlock()
			s.openFilesMutex.Unlock()
			return err
		}
		if fileNumber == cursor.currentFileNumber {
			cursor.currentFile.Lock()
			err = cursor.currentFile.Close()
			cursor.currentFile.Unlock()
			if err != nil {
				s.lruMutex.Unlock()
				s.openFilesMutex.Unlock()
				return err
			}
		}
		if !exists {
			continue
		}
		err = s.deleteFile(fileNumber)
		if err != nil {
			s.lruMutex.Unlock()
			s.openFilesMutex.Unlock()
			return err
		}
	}
	s.lruMutex.Unlock()
	s.openFilesMutex.Unlock()

	// Truncate the file the rollback point is in to the rollback offset.
	cursor.currentFile.Lock()
	defer cursor.currentFile.Unlock()
	if cursor.currentFile.file == nil ||
		location.fileNumber != cursor.currentFileNumber {

		err := cursor.currentFile.Close()
		if err != nil {
			return err
		}
		file, err := s.openWriteFile(location.fileNumber)
		if err != nil {
			return err
		}
		cursor.currentFile.file = file
	}
	err := cursor.currentFile.file.Truncate(int64(location.fileOffset))
	if err != nil {
		return errors.Wrapf(err, "failed to truncate file %d in "+
			"store %s", location.fileNumber, s.storeName)
	}

	cursor.currentFileNumber = location.fileNumber
	cursor.currentOffset = location.fileOffset
	return nil
}
