package reconcile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func line(desc string, qty, price, vat string) LineItem {
	return LineItem{
		Description:    desc,
		Quantity:       decimal.RequireFromString(qty),
		UnitPriceExVAT: decimal.RequireFromString(price),
		VATRate:        decimal.RequireFromString(vat),
	}
}

var _ = Describe("Diff", func() {
	var (
		invoiceLines  []LineItem
		deliveryLines []LineItem
		diffs         []LineDiff
	)

	BeforeEach(func() {
		invoiceLines = nil
		deliveryLines = nil
	})

	JustBeforeEach(func() {
		diffs = Diff(invoiceLines, deliveryLines, ByDescription)
	})

	When("both line sets are identical", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{
				line("IPA Keg 30L", "5", "98.50", "0.20"),
				line("Stout Cask", "2", "75.00", "0.20"),
			}
			deliveryLines = []LineItem{
				line("IPA Keg 30L", "5", "98.50", "0.20"),
				line("Stout Cask", "2", "75.00", "0.20"),
			}
		})

		It("should emit no diffs", func() {
			Expect(diffs).To(BeEmpty())
		})
	})

	When("both inputs are empty", func() {
		It("should return an empty, non-nil sequence", func() {
			Expect(diffs).NotTo(BeNil())
			Expect(diffs).To(BeEmpty())
		})
	})

	When("quantities diverge", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{line("IPA Keg 30L", "5", "98.50", "0.20")}
			deliveryLines = []LineItem{line("IPA Keg 30L", "3", "98.50", "0.20")}
		})

		It("should emit exactly one qty_diff", func() {
			Expect(diffs).To(HaveLen(1))
			Expect(diffs[0].Kind).To(Equal(DiffQuantity))
		})

		It("should report the divergence magnitude", func() {
			Expect(diffs[0].Delta.String()).To(Equal("2"))
			Expect(diffs[0].Invoice.String()).To(Equal("5"))
			Expect(diffs[0].Delivery.String()).To(Equal("3"))
		})
	})

	When("quantities differ within the epsilon", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{line("IPA Keg 30L", "5.000", "98.50", "0.20")}
			deliveryLines = []LineItem{line("IPA Keg 30L", "5.005", "98.50", "0.20")}
		})

		It("should not emit a diff", func() {
			Expect(diffs).To(BeEmpty())
		})
	})

	When("price and VAT diverge on one matched line", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{line("Stout Cask", "2", "75.00", "0.20")}
			deliveryLines = []LineItem{line("Stout Cask", "2", "70.00", "0.05")}
		})

		It("should emit both kinds for the same key", func() {
			Expect(diffs).To(HaveLen(2))
			Expect(diffs[0].Kind).To(Equal(DiffPrice))
			Expect(diffs[1].Kind).To(Equal(DiffVAT))
			Expect(diffs[0].Key).To(Equal(diffs[1].Key))
		})
	})

	When("a line exists only on the delivery side", func() {
		BeforeEach(func() {
			deliveryLines = []LineItem{line("Lager Bottles", "24", "1.10", "0.20")}
		})

		It("should emit exactly one missing_on_invoice", func() {
			Expect(diffs).To(HaveLen(1))
			Expect(diffs[0].Kind).To(Equal(DiffMissingOnInvoice))
			Expect(diffs[0].Key).To(Equal("lager bottles"))
		})
	})

	When("a line exists only on the invoice side", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{line("Service Charge", "1", "15.00", "0.20")}
		})

		It("should emit exactly one extra_on_invoice", func() {
			Expect(diffs).To(HaveLen(1))
			Expect(diffs[0].Kind).To(Equal(DiffExtraOnInvoice))
		})
	})

	When("descriptions differ only in case and spacing", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{line("IPA  Keg 30L", "5", "98.50", "0.20")}
			deliveryLines = []LineItem{line("ipa keg 30l", "5", "98.50", "0.20")}
		})

		It("should treat them as the same line", func() {
			Expect(diffs).To(BeEmpty())
		})
	})

	When("several kinds of divergence occur together", func() {
		BeforeEach(func() {
			invoiceLines = []LineItem{
				line("IPA Keg 30L", "5", "98.50", "0.20"),
				line("Service Charge", "1", "15.00", "0.20"),
			}
			deliveryLines = []LineItem{
				line("IPA Keg 30L", "3", "98.50", "0.20"),
				line("Lager Bottles", "24", "1.10", "0.20"),
			}
		})

		It("should order invoice-driven diffs before the delivery remainder", func() {
			Expect(diffs).To(HaveLen(3))
			Expect(diffs[0].Kind).To(Equal(DiffQuantity))
			Expect(diffs[1].Kind).To(Equal(DiffExtraOnInvoice))
			Expect(diffs[2].Kind).To(Equal(DiffMissingOnInvoice))
		})
	})
})

var _ = Describe("LineItem", func() {
	Describe("VATConsistent", func() {
		It("should accept a price pair that agrees with the rate", func() {
			li := line("IPA Keg 30L", "5", "100.00", "0.20")
			li.UnitPriceIncVAT = decimal.RequireFromString("120.00")
			Expect(li.VATConsistent()).To(BeTrue())
		})

		It("should flag a diverging price pair", func() {
			li := line("IPA Keg 30L", "5", "100.00", "0.20")
			li.UnitPriceIncVAT = decimal.RequireFromString("110.00")
			Expect(li.VATConsistent()).To(BeFalse())
		})

		It("should treat a missing price as consistent", func() {
			li := line("IPA Keg 30L", "5", "100.00", "0.20")
			Expect(li.VATConsistent()).To(BeTrue())
		})
	})

	Describe("LineTotal", func() {
		It("should multiply quantity by the ex-VAT price", func() {
			li := line("IPA Keg 30L", "5", "98.50", "0.20")
			Expect(li.LineTotal().String()).To(Equal("492.5"))
		})
	})
})
