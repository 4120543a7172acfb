package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// TranscriptionPrompt asks a vision model for the raw text of an image.
const TranscriptionPrompt = "Extract all visible text from this document/invoice image. " +
	"Transcribe it verbatim, keeping the original line order. Return only the extracted text, nothing else."

const invoiceShape = `{
  "customer_name": "string (full name or company name)",
  "customer_email": "string (email address)",
  "order_date": "string (YYYY-MM-DD)",
  "invoice_number": "string (invoice/receipt number)",
  "total_amount": number (total payable, no currency symbol),
  "tax_amount": number (tax, no currency symbol),
  "shipping_address": "string (complete shipping address)",
  "billing_address": "string (complete billing address)",
  "line_items": [
    {
      "product_name": "string",
      "product_code": "string (SKU/product code)",
      "quantity": integer,
      "unit_price": number,
      "line_total": number (quantity x unit_price),
      "description": "string"
    }
  ]
}`

var fieldHints = []string{
	`"customer_name": look for "Bill To:", "Customer:", "Client:", "Sold To:", "Name:".`,
	`"customer_email": look for "Email:" or any address containing "@".`,
	`"order_date": look for "Date:", "Invoice Date:", "Order Date:"; convert to YYYY-MM-DD.`,
	`"invoice_number": look for "Invoice #", "Invoice No", "Receipt #", "Order #".`,
	`"total_amount": look for "Total:", "Amount Due:", "Grand Total:", "Balance Due:"; numeric value only.`,
	`"tax_amount": look for "Tax:", "VAT:", "GST:", "Sales Tax:"; numeric value only.`,
	`"shipping_address": look for "Ship To:", "Delivery Address:", "Shipping:".`,
	`"billing_address": look for "Bill To:", "Billing Address:", "Invoice Address:".`,
	`"line_items": rows of the item table (product, code, quantity, unit price, amount).`,
}

// BuildExtractionPrompt embeds the head of the document text (first PromptTextLimit
// characters) in the extraction instructions.
func BuildExtractionPrompt(documentText string) string {
	var b strings.Builder
	b.WriteString("You are a document processing system specialized in invoice data extraction. ")
	b.WriteString("Analyze the document text below and return the invoice as one JSON object.\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("1. Return ONLY the JSON object: no prose, no markdown, no code fences.\n")
	b.WriteString("2. Start with '{' and end with '}'. Include every closing brace and bracket.\n")
	b.WriteString("3. Use \"\" for text and 0 for numbers that cannot be found. Keep every key.\n")
	b.WriteString("4. Dates are ISO-8601 (YYYY-MM-DD).\n")
	b.WriteString("5. Amounts are bare numbers without currency symbols or thousands separators.\n\n")

	b.WriteString("SHAPE:\n")
	b.WriteString(invoiceShape)
	b.WriteString("\n\nFIELD HINTS:\n")
	for _, h := range fieldHints {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}

	b.WriteString("\nDOCUMENT TEXT:\n")
	b.WriteString(truncateRunes(documentText, constants.PromptTextLimit))
	b.WriteString("\n\nReturn ONLY the complete JSON object.")
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
