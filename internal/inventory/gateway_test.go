package inventory_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/erazemk/idear/internal/api"
	"github.com/erazemk/idear/internal/client"
	"github.com/erazemk/idear/internal/inventory"
	"github.com/erazemk/idear/internal/model"
)

var _ = Describe("Gateway", func() {
	var (
		rs      *recordingServer
		gateway *inventory.Gateway
		events  <-chan inventory.Change
	)

	BeforeEach(func() {
		rs = newRecordingServer(map[string]any{"data": []any{}})
		gateway = inventory.NewGateway(newClient(rs.URL, staticToken("tok")), staticToken("tok"), nil, nil)
		var cancel func()
		events, cancel = gateway.Changes.Subscribe()
		DeferCleanup(cancel)
	})

	Describe("Search", func() {
		It("uses /find for exact searches and leaves out an unknown metric flag", func() {
			_, err := gateway.Search(bg, inventory.Criteria{Name: "Screw", Size: "M3"}, inventory.ModeExact)
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.lastPath()).To(Equal("/find"))
			Expect(rs.lastQuery().Get("name")).To(Equal("Screw"))
			Expect(rs.lastQuery().Get("size")).To(Equal("M3"))
			Expect(rs.lastQuery().Has("is_metric")).To(BeFalse())
		})

		It("uses /fuzzyfind for fuzzy searches", func() {
			_, err := gateway.Search(bg, inventory.Criteria{Name: "scr", Metric: model.MetricTrue}, inventory.ModeFuzzy)
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.lastPath()).To(Equal("/fuzzyfind"))
			Expect(rs.lastQuery().Get("is_metric")).To(Equal("true"))
		})

		It("accepts the items and single item envelopes", func() {
			rs.reply(http.StatusOK, map[string]any{"items": []map[string]any{{"name": "A"}, {"name": "B"}}})
			items, err := gateway.Search(bg, inventory.Criteria{Name: "x"}, inventory.ModeExact)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))

			rs.reply(http.StatusOK, map[string]any{"item": map[string]any{"name": "C"}})
			items, err = gateway.Search(bg, inventory.Criteria{Name: "x"}, inventory.ModeExact)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("C"))
		})

		It("returns an empty list when nothing matches", func() {
			rs.reply(http.StatusOK, map[string]any{})
			items, err := gateway.Search(bg, inventory.Criteria{Name: "x"}, inventory.ModeExact)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})

		It("treats an error field as a failure", func() {
			rs.reply(http.StatusOK, map[string]any{"error": "database locked"})
			_, err := gateway.Search(bg, inventory.Criteria{Name: "x"}, inventory.ModeExact)
			Expect(err).To(HaveOccurred())
			Expect(client.IsAPIError(err)).To(BeTrue())
		})
	})

	Describe("mutations", func() {
		It("sends count and threshold on create and announces the change", func() {
			err := gateway.Create(bg, model.Item{Name: "Nut", Size: "M4", IsMetric: model.MetricTrue, Count: 5, Threshold: 2})
			Expect(err).NotTo(HaveOccurred())

			q := rs.lastQuery()
			Expect(rs.lastPath()).To(Equal("/addItem"))
			Expect(q.Get("num")).To(Equal("5"))
			Expect(q.Get("threshold")).To(Equal("2"))
			Expect(q.Get("token")).To(Equal("tok"))
			Eventually(events).Should(Receive(Equal(inventory.Change{
				Scope: inventory.ScopeGeneral, Op: inventory.OpCreate, Name: "Nut",
			})))
		})

		It("keeps an unset metric flag unset on create", func() {
			Expect(gateway.Create(bg, model.Item{Name: "Bolt"})).To(Succeed())
			q := rs.lastQuery()
			Expect(q.Has("is_metric")).To(BeTrue())
			Expect(q.Get("is_metric")).To(BeEmpty())
		})

		It("identifies the old item and sends the new values on update", func() {
			old := model.Item{ID: 7, Name: "Nut", Size: "M4", IsMetric: model.MetricTrue}
			updated := old
			updated.Name = "Hex nut"
			updated.Count = 9

			Expect(gateway.Update(bg, old, updated)).To(Succeed())
			q := rs.lastQuery()
			Expect(q.Get("id")).To(Equal("7"))
			Expect(q.Get("name")).To(Equal("Nut"))
			Expect(q.Get("new_name")).To(Equal("Hex nut"))
			Expect(q.Get("count")).To(Equal("9"))
		})

		It("does not announce failed mutations", func() {
			rs.reply(http.StatusForbidden, map[string]any{"error": "insufficient permissions"})
			Expect(gateway.Remove(bg, model.Item{ID: 1, Name: "Nut"})).NotTo(Succeed())
			Consistently(events, "50ms").ShouldNot(Receive())
		})
	})

	Describe("AdjustCount", func() {
		It("applies the change locally and hits the direction endpoint", func() {
			item := &model.Item{ID: 3, Name: "Nut", Count: 10}
			Expect(gateway.AdjustCount(bg, item, 5, inventory.Increment)).To(Succeed())
			Expect(item.Count).To(Equal(15))
			Expect(rs.lastPath()).To(Equal("/increment"))
			Expect(rs.lastQuery().Get("num")).To(Equal("5"))

			Expect(gateway.AdjustCount(bg, item, 20, inventory.Decrement)).To(Succeed())
			Expect(item.Count).To(Equal(-5))
			Expect(rs.lastPath()).To(Equal("/decrement"))
		})

		It("keeps the local change when the server fails", func() {
			rs.reply(http.StatusInternalServerError, map[string]any{"error": "boom"})
			item := &model.Item{ID: 3, Name: "Nut", Count: 10}

			err := gateway.AdjustCount(bg, item, 5, inventory.Increment)
			Expect(err).To(HaveOccurred())
			Expect(item.Count).To(Equal(15))
		})
	})
})

var _ = Describe("Gateway against the development backend", func() {
	var (
		ts      *api.TestServer
		gateway *inventory.Gateway
	)

	BeforeEach(func() {
		ts = api.NewTestServer(GinkgoTB())
		token := staticToken(ts.Token(GinkgoTB(), "admin", 0))
		gateway = inventory.NewGateway(newClient(ts.URL, token), token, nil, nil)
	})

	It("lists the same items on repeated calls", func() {
		Expect(gateway.Create(bg, model.Item{Name: "Washer", Size: "M5", IsMetric: model.MetricTrue, Count: 100})).To(Succeed())
		Expect(gateway.Create(bg, model.Item{Name: "Bolt", Size: "1/4", IsMetric: model.MetricFalse, Count: 10})).To(Succeed())

		first, err := gateway.ListAll(bg)
		Expect(err).NotTo(HaveOccurred())
		second, err := gateway.ListAll(bg)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(HaveLen(2))
		Expect(second).To(Equal(first))
	})

	It("round-trips an update, an adjustment and a removal", func() {
		Expect(gateway.Create(bg, model.Item{
			Name: "Washer", Size: "M5", IsMetric: model.MetricTrue, Count: 100,
			Location: model.Location{Shelf: "A", Box: "3"},
		})).To(Succeed())

		found, err := gateway.Search(bg, inventory.Criteria{Name: "Washer", Size: "M5", Metric: model.MetricTrue}, inventory.ModeExact)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].Location.Box).To(Equal("3"))

		updated := found[0]
		updated.Name = "Spring washer"
		updated.Count = 40
		Expect(gateway.Update(bg, found[0], updated)).To(Succeed())

		item := &updated
		Expect(gateway.AdjustCount(bg, item, 15, inventory.Decrement)).To(Succeed())
		Expect(item.Count).To(Equal(25))

		all, err := gateway.ListAll(bg)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(1))
		Expect(all[0].Name).To(Equal("Spring washer"))
		Expect(all[0].Count).To(Equal(25))

		Expect(gateway.Remove(bg, all[0])).To(Succeed())
		all, err = gateway.ListAll(bg)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(BeEmpty())
	})

	It("finds items with a fuzzy search", func() {
		Expect(gateway.Create(bg, model.Item{Name: "Threaded rod"})).To(Succeed())
		Expect(gateway.Create(bg, model.Item{Name: "Cable tie"})).To(Succeed())

		found, err := gateway.Search(bg, inventory.Criteria{Name: "thrd"}, inventory.ModeFuzzy)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).NotTo(BeEmpty())
		Expect(found[0].Name).To(Equal("Threaded rod"))
	})
})
