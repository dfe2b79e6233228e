package entity

// MergeOrder combines an order parsed off of the history listing with the same order parsed
// off of its details page.
//
// The summary keeps the order number, details link, grand total, placed date, recipient,
// shipments and listing index. The details page supplies payment and subtotal fields and the
// shipped and refund dates. Items come from the details page when it has any, since those
// carry seller and condition, otherwise the summary items are kept.
func MergeOrder(summary, details Order) Order {
	merged := summary
	merged.FullDetails = true

	if merged.GrandTotal == nil {
		merged.GrandTotal = details.GrandTotal
	}
	if merged.Recipient == nil {
		merged.Recipient = details.Recipient
	}
	if len(details.Items) > 0 {
		merged.Items = details.Items
	}

	merged.PaymentMethod = details.PaymentMethod
	merged.PaymentMethodLastFour = details.PaymentMethodLastFour
	merged.Subtotal = details.Subtotal
	merged.ShippingTotal = details.ShippingTotal
	merged.TotalBeforeTax = details.TotalBeforeTax
	merged.EstimatedTax = details.EstimatedTax
	merged.RefundTotal = details.RefundTotal
	merged.Discounts = details.Discounts
	merged.ShippedDate = details.ShippedDate
	merged.RefundCompletedDate = details.RefundCompletedDate

	return merged
}
