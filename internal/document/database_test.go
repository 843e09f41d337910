package document

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tallyfold/invoice-desk/internal/reconcile"
	"github.com/tallyfold/invoice-desk/internal/segment"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveDocument", func() {
		var (
			doc *Document
			err error
		)

		BeforeEach(func() {
			doc = &Document{
				ID:            "doc-1",
				DocType:       segment.TypeInvoice,
				SupplierName:  "Brakspear & Sons",
				InvoiceNumber: "INV-1001",
				InvoiceDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				TotalAmount:   dec("492.50"),
				Pages:         []int{1, 2},
				SourceFile:    "scan.pdf",
				ContentType:   "application/pdf",
				CreatedAt:     time.Now(),
				UpdatedAt:     time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveDocument(doc)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the document to the database", func() {
				saved, getErr := db.GetDocument("doc-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("doc-1"))
			})
		})
	})

	Describe("GetDocument", func() {
		var (
			docID string
			doc   *Document
			err   error
		)

		JustBeforeEach(func() {
			doc, err = db.GetDocument(docID)
		})

		When("document exists", func() {
			BeforeEach(func() {
				docID = "doc-1"
				testDoc := &Document{
					ID:            "doc-1",
					DocType:       segment.TypeInvoice,
					SupplierName:  "Brakspear & Sons",
					InvoiceNumber: "INV-1001",
					TotalAmount:   dec("492.50"),
					Fields: reconcile.FieldConfidence{
						SupplierName: conf(0.9),
					},
					LineItems: []reconcile.LineItem{
						{Description: "IPA Keg 30L"},
					},
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveDocument(testDoc)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct document ID", func() {
				Expect(doc.ID).To(Equal("doc-1"))
			})

			It("should return the correct supplier name", func() {
				Expect(doc.SupplierName).To(Equal("Brakspear & Sons"))
			})

			It("should round-trip the total amount", func() {
				Expect(doc.TotalAmount.String()).To(Equal("492.5"))
			})

			It("should round-trip field confidences", func() {
				Expect(doc.Fields.SupplierName).NotTo(BeNil())
				Expect(*doc.Fields.SupplierName).To(Equal(0.9))
			})

			It("should round-trip line items", func() {
				Expect(doc.LineItems).To(HaveLen(1))
				Expect(doc.LineItems[0].Description).To(Equal("IPA Keg 30L"))
			})
		})

		When("document does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				docID = "nonexistent"
				expectedErr = errors.New("document not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListDocuments", func() {
		var (
			docs []*Document
			err  error
		)

		JustBeforeEach(func() {
			docs, err = db.ListDocuments()
		})

		When("documents exist", func() {
			BeforeEach(func() {
				doc1 := &Document{ID: "doc-1", SupplierName: "Supplier 1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
				doc2 := &Document{ID: "doc-2", SupplierName: "Supplier 2", CreatedAt: time.Now(), UpdatedAt: time.Now()}
				Expect(db.SaveDocument(doc1)).NotTo(HaveOccurred())
				Expect(db.SaveDocument(doc2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all documents", func() {
				Expect(docs).To(HaveLen(2))
			})
		})

		When("no documents exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(docs).To(BeEmpty())
			})
		})
	})

	Describe("DeleteDocument", func() {
		var (
			docID string
			err   error
		)

		JustBeforeEach(func() {
			err = db.DeleteDocument(docID)
		})

		When("document exists", func() {
			BeforeEach(func() {
				docID = "doc-1"
				doc := &Document{ID: "doc-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
				Expect(db.SaveDocument(doc)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the document from the database", func() {
				_, getErr := db.GetDocument("doc-1")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("document does not exist", func() {
			BeforeEach(func() {
				docID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("SaveDeliveryNote", func() {
		var (
			note *DeliveryNote
			err  error
		)

		BeforeEach(func() {
			note = &DeliveryNote{
				ID:           "dn-1",
				NoteNumber:   "DN-2024-001",
				SupplierName: "Brakspear & Sons",
				DeliveryDate: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC),
				TotalAmount:  dec("100.00"),
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveDeliveryNote(note)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the delivery note to the database", func() {
				saved, getErr := db.GetDeliveryNote("dn-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.NoteNumber).To(Equal("DN-2024-001"))
			})
		})
	})

	Describe("GetDeliveryNote", func() {
		When("delivery note does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetDeliveryNote("nonexistent")
				Expect(err).To(MatchError(errors.New("delivery note not found: nonexistent")))
			})
		})
	})

	Describe("ListDeliveryNotes", func() {
		var (
			notes []*DeliveryNote
			err   error
		)

		JustBeforeEach(func() {
			notes, err = db.ListDeliveryNotes()
		})

		When("delivery notes exist", func() {
			BeforeEach(func() {
				note1 := &DeliveryNote{ID: "dn-1", NoteNumber: "DN-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
				note2 := &DeliveryNote{ID: "dn-2", NoteNumber: "DN-2", CreatedAt: time.Now(), UpdatedAt: time.Now()}
				Expect(db.SaveDeliveryNote(note1)).NotTo(HaveOccurred())
				Expect(db.SaveDeliveryNote(note2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all delivery notes", func() {
				Expect(notes).To(HaveLen(2))
			})
		})

		When("no delivery notes exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(notes).To(BeEmpty())
			})
		})
	})

	Describe("SavePairing", func() {
		var (
			pairing *Pairing
			err     error
		)

		BeforeEach(func() {
			pairing = &Pairing{
				ID:        "pair-1",
				InvoiceID: "doc-1",
				NoteID:    "dn-1",
				CreatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SavePairing(pairing)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the pairing to the database", func() {
				saved, getErr := db.GetPairing("pair-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.InvoiceID).To(Equal("doc-1"))
				Expect(saved.NoteID).To(Equal("dn-1"))
			})
		})
	})

	Describe("GetPairing", func() {
		When("pairing does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetPairing("nonexistent")
				Expect(err).To(MatchError(errors.New("pairing not found: nonexistent")))
			})
		})
	})

	Describe("ListPairings", func() {
		When("pairings exist", func() {
			BeforeEach(func() {
				Expect(db.SavePairing(&Pairing{ID: "pair-1", InvoiceID: "doc-1", NoteID: "dn-1"})).NotTo(HaveOccurred())
			})

			It("should return all pairings", func() {
				pairings, err := db.ListPairings()
				Expect(err).NotTo(HaveOccurred())
				Expect(pairings).To(HaveLen(1))
			})
		})

		When("no pairings exist", func() {
			It("should return an empty list", func() {
				pairings, err := db.ListPairings()
				Expect(err).NotTo(HaveOccurred())
				Expect(pairings).To(BeEmpty())
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
