package utils

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Unmarshal fills a fixed-size struct from little endian bytes.
func Unmarshal(data []byte, v any) error {
	if binary.Size(v) > len(data) {
		return errors.Errorf("need %d bytes got %d", binary.Size(v), len(data))
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}

func ReadEndianUInt32(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data)
}

func Hexify(barray []byte) string {
	return hex.EncodeToString(barray)
}

func GetMD5(data []byte) string {
	sum := md5.Sum(data)
	return Hexify(sum[:])
}

func GetSHA1(data []byte) string {
	sum := sha1.Sum(data)
	return Hexify(sum[:])
}

// GetEntriesInt parses a comma separated list of integers, invalid items are ignored.
func GetEntriesInt(entries string) []int {
	var vals []int
	for _, entry := range GetEntries(entries) {
		val, err := strconv.Atoi(entry)
		if err != nil {
			continue
		}
		vals = append(vals, val)
	}
	return vals
}

func GetEntries(entries string) []string {
	var vals []string
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		vals = append(vals, entry)
	}
	return vals
}
