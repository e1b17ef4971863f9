package routing

import "strings"

const mimePDF = "application/pdf"

var receiptImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// DetectReceipt classifies an attachment as a PDF or image receipt by its
// declared MIME type. Unknown types, including other documents, yield ReceiptNone.
func DetectReceipt(att *Attachment) ReceiptType {
	if att == nil {
		return ReceiptNone
	}
	if doc := att.DocumentMessage; doc != nil {
		switch mt := normalizeMIME(doc.Mimetype); {
		case mt == mimePDF:
			return ReceiptPDF
		case receiptImageTypes[mt]:
			// Images sent "as document" keep their quality; still a receipt.
			return ReceiptImage
		}
	}
	if img := att.ImageMessage; img != nil && receiptImageTypes[normalizeMIME(img.Mimetype)] {
		return ReceiptImage
	}
	return ReceiptNone
}

// normalizeMIME lowercases a MIME type and strips parameters such as charset.
func normalizeMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
