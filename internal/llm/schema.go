package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is deliberately loose about scalar types since the normalizer coerces values;
// it only rejects structurally wrong documents.
func BuildInvoiceJSONSchema() map[string]any {
	text := map[string]any{"type": []string{"string", "null"}}
	amount := map[string]any{"type": []string{"number", "string", "null"}}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_name": text,
			"product_code": text,
			"description":  text,
			"quantity":     map[string]any{"type": []string{"integer", "number", "string", "null"}},
			"unit_price":   amount,
			"line_total":   amount,
		},
	}
	items := map[string]any{
		"type":  []string{"array", "null"},
		"items": item,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customer_name":    text,
			"customer_email":   text,
			"order_date":       text,
			"invoice_number":   map[string]any{"type": []string{"string", "number", "null"}},
			"total_amount":     amount,
			"tax_amount":       amount,
			"shipping_address": text,
			"billing_address":  text,
			"line_items":       items,
			"order_details":    items,
		},
	}
}
