package bill

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/tabsplit/tabsplit/internal/scanning"
	"github.com/tabsplit/tabsplit/internal/splitting"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		extractor   *mockExtractor
		storage     *mockStorage
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewService(db, extractor, storage)
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	uploadRequest := func(participants string) *http.Request {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", "receipt.jpg")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake image data"))
		Expect(err).NotTo(HaveOccurred())
		if participants != "" {
			Expect(writer.WriteField("participants", participants)).NotTo(HaveOccurred())
		}
		Expect(writer.Close()).NotTo(HaveOccurred())

		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/bills", &b)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	BeforeEach(func() {
		db = newMockDB()
		extractor = newMockExtractor()
		storage = newMockStorage()
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleListBills", func() {
		When("bills exist", func() {
			BeforeEach(func() {
				db.bills["id1"] = &Bill{ID: "id1", StoreName: "Costco"}
				db.bills["id2"] = &Bill{ID: "id2", StoreName: "Aldi"}
			})

			It("should return status OK", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})

			It("should return all bills", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var bills []*Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bills)).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(2))
			})

			It("should set Content-Type to application/json", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("no bills exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var bills []*Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bills)).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})
	})

	Describe("handleScanBill", func() {
		When("the upload is valid", func() {
			It("should return status Created with the bill", func() {
				resp, err := http.DefaultClient.Do(uploadRequest("alice, bob"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var bill Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bill)).NotTo(HaveOccurred())
				Expect(bill.StoreName).To(Equal("Trader Joe's"))
				Expect(bill.Participants).To(Equal([]string{"alice", "bob"}))
				Expect(bill.Items).To(HaveLen(2))
			})
		})

		When("no participants are given", func() {
			It("should return status Bad Request", func() {
				resp, err := http.DefaultClient.Do(uploadRequest(""))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errResp map[string]string
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &errResp)).NotTo(HaveOccurred())
				Expect(errResp["error"]).To(ContainSubstring("participant"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				Expect(writer.WriteField("participants", "alice")).NotTo(HaveOccurred())
				Expect(writer.Close()).NotTo(HaveOccurred())

				req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/bills", &b)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", writer.FormDataContentType())

				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the extractor fails", func() {
			BeforeEach(func() {
				extractor.extractErr = scanning.ErrLowQuality
			})

			It("should return status Bad Request with the error", func() {
				resp, err := http.DefaultClient.Do(uploadRequest("alice"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errResp map[string]string
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &errResp)).NotTo(HaveOccurred())
				Expect(errResp["error"]).To(ContainSubstring("quality"))
			})
		})

		When("the form is not multipart", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/bills", "multipart/form-data", bytes.NewBufferString("invalid"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetBill", func() {
		When("the bill exists", func() {
			BeforeEach(func() {
				db.bills["bill-1"] = &Bill{ID: "bill-1", StoreName: "Kroger"}
			})

			It("should return the bill", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/bill-1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var bill Bill
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &bill)).NotTo(HaveOccurred())
				Expect(bill.StoreName).To(Equal("Kroger"))
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUpdateBill", func() {
		BeforeEach(func() {
			db.bills["bill-1"] = &Bill{
				ID:           "bill-1",
				StoreName:    "Kroger",
				Participants: []string{"alice"},
				Items:        []Item{{Name: "Milk", Price: 349, Split: splitting.Rule{Kind: splitting.Equal}}},
				ImagePath:    "bill-1_receipt.jpg",
			}
		})

		When("the update is valid", func() {
			It("should return the updated bill", func() {
				update := UpdateRequest{
					StoreName:    "Kroger",
					Participants: []string{"alice", "bob"},
					Items:        []Item{{Name: "Milk", Price: 349, Split: splitting.Rule{Kind: splitting.Equal}}},
					Tax:          28,
				}
				body, err := json.Marshal(update)
				Expect(err).NotTo(HaveOccurred())

				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/bill-1", bytes.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", "application/json")

				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var updated Bill
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &updated)).NotTo(HaveOccurred())
				Expect(updated.Participants).To(Equal([]string{"alice", "bob"}))
				Expect(updated.Total).To(Equal(int64(377)))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/bill-1", strings.NewReader("not json"))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the update fails validation", func() {
			It("should return status Bad Request with the error", func() {
				update := UpdateRequest{
					Participants: []string{"alice"},
					Items: []Item{{Name: "Milk", Price: 349, Split: splitting.Rule{
						Kind:         splitting.Equal,
						Participants: []string{"mallory"},
					}}},
				}
				body, err := json.Marshal(update)
				Expect(err).NotTo(HaveOccurred())

				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/bill-1", bytes.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errResp map[string]string
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &errResp)).NotTo(HaveOccurred())
				Expect(errResp["error"]).To(ContainSubstring("mallory"))
			})
		})
	})

	Describe("handleGetBillImage", func() {
		When("the image exists", func() {
			BeforeEach(func() {
				db.bills["bill-1"] = &Bill{ID: "bill-1", ImagePath: "bill-1_receipt.jpg", ContentType: "image/jpeg"}
				storage.files["bill-1_receipt.jpg"] = []byte("image bytes")
			})

			It("should return the image with its content type", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/bill-1/image")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(Equal([]byte("image bytes")))
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/missing/image")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetBillSummary", func() {
		When("the bill exists", func() {
			BeforeEach(func() {
				db.bills["bill-1"] = &Bill{
					ID:           "bill-1",
					Participants: []string{"alice", "bob"},
					Items: []Item{
						{Name: "Pad Thai", Price: 1400, Split: splitting.Rule{
							Kind:         splitting.Equal,
							Participants: []string{"alice"},
						}},
						{Name: "Spring Rolls", Price: 600, Split: splitting.Rule{Kind: splitting.Equal}},
					},
					Tax: 0,
				}
			})

			It("should return the per-participant totals", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/bill-1/summary")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var summary splitting.Summary
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &summary)).NotTo(HaveOccurred())
				Expect(summary.GrandTotal).To(Equal(int64(2000)))

				amounts := map[string]int64{}
				for _, total := range summary.Totals {
					amounts[total.ParticipantID] = total.Amount
				}
				Expect(amounts["alice"]).To(Equal(int64(1700)))
				Expect(amounts["bob"]).To(Equal(int64(300)))
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/missing/summary")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteBill", func() {
		BeforeEach(func() {
			db.bills["bill-1"] = &Bill{ID: "bill-1", ImagePath: "bill-1_receipt.jpg"}
			storage.files["bill-1_receipt.jpg"] = []byte("image bytes")
		})

		It("should return status No Content and remove the bill", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/bill-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			Expect(db.bills).NotTo(HaveKey("bill-1"))
		})

		It("should remove the stored image", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/bill-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(storage.files).NotTo(HaveKey("bill-1_receipt.jpg"))
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/missing", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("requireAuth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		When("no credentials are provided", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
				resp.Body.Close()
			})
		})

		When("wrong credentials are provided", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/bills", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:wrong")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("correct credentials are provided", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/bills", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
