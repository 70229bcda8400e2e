package openai

import (
	"fmt"

	"github.com/poiesic/docpipe/core"
)

const ocrSystemPrompt = `You are an OCR engine. Transcribe all text visible in the supplied document exactly as written.
Preserve line breaks and the reading order of the document. Do not summarize, translate, or correct the text.
Output only the transcription with no preamble or commentary.`

const ocrUserPrompt = `Transcribe this document.`

// fieldSets lists the fields requested per document type.
var fieldSets = map[core.DocumentType]string{
	core.DocumentTypeCheck: `"payee", "amount", "amount_in_words", "date", "check_number",
"bank_name", "routing_number", "account_number", "memo", "signature_present"`,
	core.DocumentTypeReceipt: `"merchant", "merchant_address", "date", "time", "currency",
"subtotal", "tax", "tip", "total", "payment_method", "line_items" (array of {"description","quantity","unit_price","amount"})`,
	core.DocumentTypeUnknown: `"document_kind", "date", "parties", "amounts", "reference_numbers"`,
}

const extractionPromptTemplate = `Extract structured fields from the OCR text of a %s and return them as JSON.

Output ONLY valid JSON. Do not include any preamble, explanation, greeting, or acknowledgment.
Start your response directly with the opening brace { and end with the closing brace }.
Your output must follow this shape:

{
  "confidence": <number from 0 to 1>,
  "fields": { ... }
}

Rules:
- "fields" may contain only these keys: %s.
- Use null for fields that are not present in the text. Do not guess.
- Amounts are numbers without currency symbols. Dates use YYYY-MM-DD.
- "confidence" reflects how legible and complete the text was for this document type.
- The JSON must parse without errors; no trailing commas and no extraneous text outside the object.`

// buildExtractionPrompt creates the system prompt for docType.
func buildExtractionPrompt(docType core.DocumentType) string {
	fields, ok := fieldSets[docType]
	if !ok {
		docType = core.DocumentTypeUnknown
		fields = fieldSets[docType]
	}
	return fmt.Sprintf(extractionPromptTemplate, docType, fields)
}
