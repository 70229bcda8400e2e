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


// Package ai defines the external collaborators of the document pipeline.
//
// Two services sit behind narrow interfaces:
//
//   - OCRProcessor: recognizes the text of an image or PDF
//   - Extractor: turns recognized text into structured JSON for a document type
//
// Provider aggregates both so they can share configuration and be closed together.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible vision and chat APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and assert call counts.
//
// # Document payloads
//
// A document is handed to a vision model as a DocumentPayload, a closed sum
// type with the variants ImageURL and DocumentURL. Code that consumes a
// payload switches over the variants exhaustively:
//
//	switch p := payload.(type) {
//	case ai.ImageURL:
//	    ...
//	case ai.DocumentURL:
//	    ...
//	}
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	ocr, err := provider.OCR().Process(ctx, data, "image/jpeg")
//	fields, err := provider.Extractor().Extract(ctx, ocr.Text, core.DocumentTypeReceipt)
package ai
