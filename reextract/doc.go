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

// Package reextract re-runs field extraction over stored results.
//
// OCR is the expensive half of processing a document, and its output is
// kept in every ResultRecord. When the extraction model or its prompt
// changes, the stored text can be fed back through the new extractor
// without touching the original images:
//
//	r := reextract.New(repo, provider.Extractor(), reextract.DefaultConfig(), os.Stderr)
//	summary, err := r.Run(ctx)
//
// Records are read in insertion order and processed in batches. Each batch
// is extracted with bounded concurrency and written back in a single
// transaction. Records without OCR text are skipped. A record whose
// extraction still fails after retries is left unchanged and counted in
// Summary.Failed.
package reextract
