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


// Package storage provides the result storage abstraction for docpipe.
//
// Processed documents are persisted as core.ResultRecord values. The
// ResultRepository interface decouples the engine from the backend; the
// BadgerDB implementation lives in storage/badger.
//
// Public constructors return the interface:
//
//	repo, err := badger.NewRepository("/path/to/db")  // returns storage.ResultRepository
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Encoding
//
// Records are encoded with the mus-go codec in core and compressed with zstd
// once they grow past a small threshold. A one byte header tells the two
// forms apart, so small records stay cheap to read.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
