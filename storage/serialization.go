// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docpipe/core"
)

// Record encodings, stored in the first byte of every value.
const (
	encodingRaw  byte = 0
	encodingZstd byte = 1
)

// compressThreshold is the encoded size above which records are compressed.
const compressThreshold = 512

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("storage: create zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("storage: create zstd decoder: %v", err))
	}
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalResultRecord serializes a ResultRecord, compressing large records.
func MarshalResultRecord(record *core.ResultRecord) []byte {
	size := core.ResultRecordMUS.Size(*record)
	buf := make([]byte, size+1)
	core.ResultRecordMUS.Marshal(*record, buf[1:])
	if size <= compressThreshold {
		buf[0] = encodingRaw
		return buf
	}

	out := make([]byte, 1, size/2+1)
	out[0] = encodingZstd
	return encoder.EncodeAll(buf[1:], out)
}

// UnmarshalResultRecord deserializes a ResultRecord written by MarshalResultRecord.
func UnmarshalResultRecord(data []byte) (*core.ResultRecord, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}

	body := data[1:]
	switch data[0] {
	case encodingRaw:
	case encodingZstd:
		var err error
		body, err = decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrSerializationFailed, data[0])
	}

	record, _, err := core.ResultRecordMUS.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}
