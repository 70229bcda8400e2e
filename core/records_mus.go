package core

import (
	"math"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ResultRecordMUS is the binary codec for ResultRecord.
// Field order is part of the storage format; append new fields at the end.
var ResultRecordMUS = resultRecordMUS{}

type resultRecordMUS struct{}

func (resultRecordMUS) Marshal(r ResultRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(r.Id), bs)
	n += ord.String.Marshal(r.RequestID, bs[n:])
	n += varint.Uint64.Marshal(uint64(r.DocumentID), bs[n:])
	n += ord.String.Marshal(r.MimeType, bs[n:])
	n += ord.String.Marshal(string(r.DocumentType), bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += ord.String.Marshal(r.Payload, bs[n:])
	n += varint.Uint64.Marshal(math.Float64bits(r.Confidence), bs[n:])
	n += ord.Bool.Marshal(r.Success, bs[n:])
	n += ord.String.Marshal(r.Error, bs[n:])
	n += ord.String.Marshal(r.Model, bs[n:])
	n += varint.Int64.Marshal(int64(r.TotalTokens), bs[n:])
	n += varint.Int64.Marshal(int64(r.Elapsed), bs[n:])
	n += varint.Int64.Marshal(r.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(int64(len(r.Metadata)), bs[n:])
	for _, k := range sortedKeys(r.Metadata) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(r.Metadata[k], bs[n:])
	}
	return n
}

func (resultRecordMUS) Size(r ResultRecord) (size int) {
	size = varint.Uint64.Size(uint64(r.Id))
	size += ord.String.Size(r.RequestID)
	size += varint.Uint64.Size(uint64(r.DocumentID))
	size += ord.String.Size(r.MimeType)
	size += ord.String.Size(string(r.DocumentType))
	size += ord.String.Size(r.Text)
	size += ord.String.Size(r.Payload)
	size += varint.Uint64.Size(math.Float64bits(r.Confidence))
	size += ord.Bool.Size(r.Success)
	size += ord.String.Size(r.Error)
	size += ord.String.Size(r.Model)
	size += varint.Int64.Size(int64(r.TotalTokens))
	size += varint.Int64.Size(int64(r.Elapsed))
	size += varint.Int64.Size(r.InsertedAt.UnixMicro())
	size += varint.Int64.Size(int64(len(r.Metadata)))
	for k, v := range r.Metadata {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return size
}

func (resultRecordMUS) Unmarshal(bs []byte) (r ResultRecord, n int, err error) {
	d := musDecoder{bs: bs}
	r.Id = ID(d.uint64())
	r.RequestID = d.string()
	r.DocumentID = ID(d.uint64())
	r.MimeType = d.string()
	r.DocumentType = DocumentType(d.string())
	r.Text = d.string()
	r.Payload = d.string()
	r.Confidence = math.Float64frombits(d.uint64())
	r.Success = d.bool()
	r.Error = d.string()
	r.Model = d.string()
	r.TotalTokens = int(d.int64())
	r.Elapsed = time.Duration(d.int64())
	r.InsertedAt = time.UnixMicro(d.int64()).UTC()
	count := d.int64()
	if d.err == nil && count > 0 {
		r.Metadata = make(map[string]string, count)
		for i := int64(0); i < count && d.err == nil; i++ {
			k := d.string()
			r.Metadata[k] = d.string()
		}
	}
	if d.err != nil {
		return ResultRecord{}, d.n, d.err
	}
	return r, d.n, nil
}

// musDecoder reads fields in sequence and stops at the first error.
type musDecoder struct {
	bs  []byte
	n   int
	err error
}

func (d *musDecoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, m, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += m
	d.err = err
	return v
}

func (d *musDecoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, m, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += m
	d.err = err
	return v
}

func (d *musDecoder) string() string {
	if d.err != nil {
		return ""
	}
	v, m, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += m
	d.err = err
	return v
}

func (d *musDecoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, m, err := ord.Bool.Unmarshal(d.bs[d.n:])
	d.n += m
	d.err = err
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
