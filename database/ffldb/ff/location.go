package ff

import (
	"github.com/pkg/errors"
)

// flatFileLocation identifies a particular flat file location.
type flatFileLocation struct {
	fileNumber uint32
	fileOffset uint32
	dataLength uint32
}

// serializedLocationLength is the length in bytes of a serialized
// flatFileLocation.
const serializedLocationLength = 12

// serializeLocation returns the serialization of the passed flat file
// location.
func serializeLocation(location *flatFileLocation) []byte {
	// Serialized format is:
	//  [0:4]  File Number
	//  [4:8]  File offset
	//  [8:12] Data length
	serializedLocation := make([]byte, serializedLocationLength)
	byteOrder.PutUint32(serializedLocation[0:4], location.fileNumber)
	byteOrder.PutUint32(serializedLocation[4:8], location.fileOffset)
	byteOrder.PutUint32(serializedLocation[8:12], location.dataLength)
	return serializedLocation
}

// deserializeLocation deserializes the passed serialized flat file location.
func deserializeLocation(serializedLocation []byte) (*flatFileLocation, error) {
	if len(serializedLocation) != serializedLocationLength {
		return nil, errors.Errorf("unexpected serialized location "+
			"length - got %d, want %d", len(serializedLocation),
			serializedLocationLength)
	}
	location := &flatFileLocation{
		fileNumber: byteOrder.Uint32(serializedLocation[0:4]),
		fileOffset: byteOrder.Uint32(serializedLocation[4:8]),
		dataLength: byteOrder.Uint32(serializedLocation[8:12]),
	}
	return location, nil
}
