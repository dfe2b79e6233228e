// Package selectors holds the css queries and site constants the parsers run against. Every
// query is an ordered list of candidates, the first candidate that matches wins.
package selectors

import (
	"fmt"

	"dario.cat/mergo"
)

// Query is an ordered list of candidate css selectors.
type Query []string

type Selectors struct {
	// sign in and challenge forms
	SignInForm           Query `json:"sign_in_form,omitempty" yaml:"sign_in_form,omitempty"`
	SignInError          Query `json:"sign_in_error,omitempty" yaml:"sign_in_error,omitempty"`
	MFADeviceSelectForm  Query `json:"mfa_device_select_form,omitempty" yaml:"mfa_device_select_form,omitempty"`
	MFADeviceSelectInput Query `json:"mfa_device_select_input,omitempty" yaml:"mfa_device_select_input,omitempty"`
	MFADeviceSelectError Query `json:"mfa_device_select_error,omitempty" yaml:"mfa_device_select_error,omitempty"`
	MFAForm              Query `json:"mfa_form,omitempty" yaml:"mfa_form,omitempty"`
	MFAError             Query `json:"mfa_error,omitempty" yaml:"mfa_error,omitempty"`
	CaptchaForm          Query `json:"captcha_form,omitempty" yaml:"captcha_form,omitempty"`
	CaptchaImage         Query `json:"captcha_image,omitempty" yaml:"captcha_image,omitempty"`
	CaptchaError         Query `json:"captcha_error,omitempty" yaml:"captcha_error,omitempty"`
	WAFScript            Query `json:"waf_script,omitempty" yaml:"waf_script,omitempty"`
	JSRequired           Query `json:"js_required,omitempty" yaml:"js_required,omitempty"`
	SignOutLink          Query `json:"sign_out_link,omitempty" yaml:"sign_out_link,omitempty"`

	// order history and order details
	OrderHistoryContainer Query `json:"order_history_container,omitempty" yaml:"order_history_container,omitempty"`
	OrderHistoryEntity    Query `json:"order_history_entity,omitempty" yaml:"order_history_entity,omitempty"`
	OrderDetailsEntity    Query `json:"order_details_entity,omitempty" yaml:"order_details_entity,omitempty"`
	NextPageLink          Query `json:"next_page_link,omitempty" yaml:"next_page_link,omitempty"`

	OrderNumber       Query `json:"order_number,omitempty" yaml:"order_number,omitempty"`
	OrderDetailsLink  Query `json:"order_details_link,omitempty" yaml:"order_details_link,omitempty"`
	OrderGrandTotal   Query `json:"order_grand_total,omitempty" yaml:"order_grand_total,omitempty"`
	OrderPlacedDate   Query `json:"order_placed_date,omitempty" yaml:"order_placed_date,omitempty"`
	Recipient         Query `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	RecipientName     Query `json:"recipient_name,omitempty" yaml:"recipient_name,omitempty"`
	RecipientAddress  Query `json:"recipient_address,omitempty" yaml:"recipient_address,omitempty"`
	PaymentMethod     Query `json:"payment_method,omitempty" yaml:"payment_method,omitempty"`
	SubtotalRows      Query `json:"subtotal_rows,omitempty" yaml:"subtotal_rows,omitempty"`
	ShippedDate       Query `json:"shipped_date,omitempty" yaml:"shipped_date,omitempty"`
	RefundCompletedOn Query `json:"refund_completed_on,omitempty" yaml:"refund_completed_on,omitempty"`

	GiftCardOrder   Query `json:"gift_card_order,omitempty" yaml:"gift_card_order,omitempty"`
	WholeFoodsOrder Query `json:"whole_foods_order,omitempty" yaml:"whole_foods_order,omitempty"`
	FreshOrder      Query `json:"fresh_order,omitempty" yaml:"fresh_order,omitempty"`
	DigitalOrder    Query `json:"digital_order,omitempty" yaml:"digital_order,omitempty"`

	Shipments              Query `json:"shipments,omitempty" yaml:"shipments,omitempty"`
	ShipmentDeliveryStatus Query `json:"shipment_delivery_status,omitempty" yaml:"shipment_delivery_status,omitempty"`
	ShipmentTrackingLink   Query `json:"shipment_tracking_link,omitempty" yaml:"shipment_tracking_link,omitempty"`

	Items                  Query `json:"items,omitempty" yaml:"items,omitempty"`
	ItemTitle              Query `json:"item_title,omitempty" yaml:"item_title,omitempty"`
	ItemLink               Query `json:"item_link,omitempty" yaml:"item_link,omitempty"`
	ItemPrice              Query `json:"item_price,omitempty" yaml:"item_price,omitempty"`
	ItemSeller             Query `json:"item_seller,omitempty" yaml:"item_seller,omitempty"`
	ItemCondition          Query `json:"item_condition,omitempty" yaml:"item_condition,omitempty"`
	ItemReturnEligibleDate Query `json:"item_return_eligible_date,omitempty" yaml:"item_return_eligible_date,omitempty"`
	ItemImage              Query `json:"item_image,omitempty" yaml:"item_image,omitempty"`
	ItemQuantity           Query `json:"item_quantity,omitempty" yaml:"item_quantity,omitempty"`

	// transaction history
	TransactionForm           Query `json:"transaction_form,omitempty" yaml:"transaction_form,omitempty"`
	TransactionDateContainer  Query `json:"transaction_date_container,omitempty" yaml:"transaction_date_container,omitempty"`
	TransactionItemsContainer Query `json:"transaction_items_container,omitempty" yaml:"transaction_items_container,omitempty"`
	TransactionLineItem       Query `json:"transaction_line_item,omitempty" yaml:"transaction_line_item,omitempty"`
	TransactionPaymentMethod  Query `json:"transaction_payment_method,omitempty" yaml:"transaction_payment_method,omitempty"`
	TransactionGrandTotal     Query `json:"transaction_grand_total,omitempty" yaml:"transaction_grand_total,omitempty"`
	TransactionOrderLink      Query `json:"transaction_order_link,omitempty" yaml:"transaction_order_link,omitempty"`
	TransactionSeller         Query `json:"transaction_seller,omitempty" yaml:"transaction_seller,omitempty"`
	NoTransactions            Query `json:"no_transactions,omitempty" yaml:"no_transactions,omitempty"`
	TransactionNextPageEvent  Query `json:"transaction_next_page_event,omitempty" yaml:"transaction_next_page_event,omitempty"`
	TransactionWidgetState    Query `json:"transaction_widget_state,omitempty" yaml:"transaction_widget_state,omitempty"`
	TransactionIE             Query `json:"transaction_ie,omitempty" yaml:"transaction_ie,omitempty"`
}

const alertContent = " .a-alert-content"

// Default returns the selectors known to match the site as of the latest fixtures.
func Default() Selectors {
	return Selectors{
		SignInForm: Query{"form[name='signIn']", "form#ap_login_form"},
		SignInError: Query{
			"#auth-error-message-box" + alertContent,
			"#auth-warning-message-box" + alertContent,
			"div#auth-email-invalid-claim-alert" + alertContent,
		},
		MFADeviceSelectForm:  Query{"form#auth-select-device-form"},
		MFADeviceSelectInput: Query{"input[name='otpDeviceContext']"},
		MFADeviceSelectError: Query{"#auth-error-message-box" + alertContent},
		MFAForm: Query{
			"form#auth-mfa-form",
			"form#verification-code-form",
			"form.cvf-widget-form[action='verify']",
		},
		MFAError: Query{
			"#auth-error-message-box" + alertContent,
			"div.cvf-widget-alert" + alertContent,
		},
		CaptchaForm: Query{
			"form.cvf-widget-form-captcha",
			"form[action*='validateCaptcha']",
			"form:has(input[name^='cvf_captcha'])",
		},
		CaptchaImage: Query{
			"img.cvf-widget-captcha-img",
			"div.a-row img[src*='captcha']",
			"form img",
		},
		CaptchaError: Query{
			"div.cvf-widget-alert" + alertContent,
			"div.a-alert-error" + alertContent,
		},
		WAFScript:   Query{"script:contains('gokuProps')"},
		JSRequired:  Query{"noscript:contains('Enable JavaScript')", "div#cvf-aamation-challenge-iframe"},
		SignOutLink: Query{"a#nav-item-signout"},

		OrderHistoryContainer: Query{
			"div#ordersContainer",
			"div.your-orders-content-container",
			"section.your-orders-content-container",
		},
		OrderHistoryEntity: Query{"div.order-card", "div.order"},
		OrderDetailsEntity: Query{"div#orderDetails", "div#ordersContainer", "[data-page-type='OrderDetails']"},
		NextPageLink:       Query{"ul.a-pagination li.a-last a"},

		OrderNumber: Query{
			"[data-component='orderId']",
			"div.yohtmlc-order-id span.value",
			"div.yohtmlc-order-id bdi",
			"span.order-date-invoice-item bdi",
		},
		OrderDetailsLink: Query{
			"a.yohtmlc-order-details-link",
			"a[href*='order-details']",
		},
		OrderGrandTotal: Query{
			"div.yohtmlc-order-total span.value",
			"div.yohtmlc-order-total .a-size-base",
			"div#od-subtotals div.a-row:contains('Grand Total') div.a-text-right",
			"[data-component='chargeSummary'] div.od-line-item-row:contains('Grand Total') .od-line-item-row-content",
		},
		OrderPlacedDate: Query{
			"div.order-header div.a-column:first-child span.value",
			"div.order-info div.a-column:first-child span.value",
			"span.order-date-invoice-item",
			"[data-component='orderDate']",
		},
		Recipient: Query{
			"div.yohtmlc-recipient",
			"div.displayAddressDiv",
			"[data-component='shippingAddress']",
		},
		RecipientName: Query{
			"span.trigger-text",
			"li.displayAddressFullName",
			"div.recipient-name",
		},
		RecipientAddress: Query{
			"div.recipient-address",
			"ul.displayAddressUL li:not(.displayAddressFullName)",
		},
		PaymentMethod: Query{
			"div.pmts-payments-instrument-detail-box-paystationpaymentmethod span.a-color-base",
			"[data-component='viewPaymentPlanSummaryWidget'] span.pmts-payments-instrument-supplemental-text",
			"div.payment-method",
		},
		SubtotalRows: Query{
			"div#od-subtotals div.a-row",
			"[data-component='chargeSummary'] div.od-line-item-row",
		},
		ShippedDate: Query{
			"div.shipment-info:contains('Shipped on')",
			"span.shipped-date",
		},
		RefundCompletedOn: Query{
			"div.refund-info:contains('Refund')",
			"span.refund-completed-date",
		},

		GiftCardOrder: Query{
			"div.yohtmlc-order-gift-card",
			"div.gift-card-instance",
		},
		WholeFoodsOrder: Query{
			"div.yohtmlc-order-whole-foods",
			"img[alt*='Whole Foods']",
		},
		FreshOrder: Query{
			"div.yohtmlc-order-fresh",
			"img[alt*='Amazon Fresh']",
		},
		DigitalOrder: Query{
			"div.yohtmlc-order-digital",
			"a[href*='/gp/digital/your-account/order-summary']",
		},

		Shipments: Query{
			"div.shipment",
			"div.delivery-box",
			"[data-component='shipments'] > div",
		},
		ShipmentDeliveryStatus: Query{
			"div.js-shipment-info-container div.a-row span.a-text-bold",
			"span.delivery-box__primary-text",
		},
		ShipmentTrackingLink: Query{
			"span.track-package-button a",
			"a[href*='ship-track']",
		},

		Items: Query{
			"div.yohtmlc-item",
			"div.item-box",
			"[data-component='purchasedItems']",
		},
		ItemTitle: Query{
			"div.yohtmlc-product-title",
			"[data-component='itemTitle']",
			"a.a-link-normal[href*='/dp/']",
		},
		ItemLink: Query{
			"a.a-link-normal[href*='/dp/']",
			"a.a-link-normal[href*='/gp/product/']",
			"[data-component='itemTitle'] a",
		},
		ItemPrice: Query{
			"span.a-color-price",
			"[data-component='unitPrice'] span.a-offscreen",
		},
		ItemSeller: Query{
			"span.a-size-small:contains('Sold by:')",
			"[data-component='orderedMerchant']",
		},
		ItemCondition: Query{
			"span.a-size-small:contains('Condition:')",
			"[data-component='itemCondition']",
		},
		ItemReturnEligibleDate: Query{
			"div.yohtmlc-item div.a-row:contains('Return')",
			"[data-component='itemReturnEligibility']",
		},
		ItemImage: Query{
			"div.item-view-left-col-inner img",
			"[data-component='itemImage'] img",
			"img",
		},
		ItemQuantity: Query{
			"span.item-view-qty",
			"div.od-item-view-qty span",
		},

		TransactionForm:           Query{"form[action*='/cpe/yourpayments/transactions']"},
		TransactionDateContainer:  Query{"div.apx-transaction-date-container"},
		TransactionItemsContainer: Query{"div.apx-transactions-line-item-component-container"},
		TransactionLineItem:       Query{"div.apx-transaction-line-item", "div.a-section.a-spacing-base"},
		TransactionPaymentMethod:  Query{"span.a-size-base.a-text-bold"},
		TransactionGrandTotal:     Query{"span.a-size-base-plus.a-text-bold"},
		TransactionOrderLink:      Query{"a.a-link-normal"},
		TransactionSeller:         Query{"span.a-size-base:not(.a-text-bold)"},
		NoTransactions:            Query{"div.apx-transactions-sleeve-no-transactions", "div.a-box-inner:contains('no transactions')"},
		TransactionNextPageEvent:  Query{"span.a-button input[name*='DefaultNextPageNavigationEvent']"},
		TransactionWidgetState:    Query{"input[name='ppw-widgetState']"},
		TransactionIE:             Query{"input[name='ie']"},
	}
}

// Merge returns the defaults with every non-empty query from `override` applied on top.
func Merge(base, override Selectors) (Selectors, error) {
	out := base
	err := mergo.Merge(&out, override, mergo.WithOverride)
	if err != nil {
		return Selectors{}, fmt.Errorf("merge selectors: %w", err)
	}
	return out, nil
}
