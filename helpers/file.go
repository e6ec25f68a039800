// Package helpers collects small file and encoding utilities shared by the
// storage packages: existence checks and BSON marshaling for catalog
// metadata records.
package helpers

import (
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// FileExists reports whether filename exists and is a regular file.
func FileExists(filename string, logger *zap.SugaredLogger) bool {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		logger.Debugf("error checking file %s for existence: %v", filename, err)
		return false
	}
	return !info.IsDir()
}

// EncodeBSON marshals a catalog metadata record into BSON bytes.
func EncodeBSON(value interface{}) ([]byte, error) {
	return bson.Marshal(value)
}

// DecodeBSON unmarshals BSON bytes produced by EncodeBSON into dest.
func DecodeBSON(data []byte, dest interface{}) error {
	return bson.Unmarshal(data, dest)
}
