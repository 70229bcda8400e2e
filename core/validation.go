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


package core

import (
	"fmt"
)

// ValidateRequest validates a Request according to domain rules.
//
// Validation rules:
//   - Input must not be empty
//   - Kind must be a known InputKind
//   - Priority must not be negative
//
// NOT validated (assigned by the orchestrator):
//   - ID (an empty ID is replaced with a generated one)
func ValidateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	if len(req.Input) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyInput)
	}

	if err := ValidateInputKind(req.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if req.Priority < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidPriority)
	}

	return nil
}

// ValidateInputKind validates that an InputKind has a valid value.
func ValidateInputKind(kind InputKind) error {
	switch kind {
	case InputKindImage, InputKindDataURI, InputKindText:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidInputKind, kind)
	}
}

// ValidateDocument checks that a Document can be sent to OCR.
func ValidateDocument(doc Document) error {
	if len(doc.Data) == 0 {
		return NewValidationError("data", "document has no content")
	}
	if doc.MimeType == "" {
		return NewValidationError("mimeType", "document has no mime type")
	}
	return nil
}
