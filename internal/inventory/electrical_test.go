package inventory_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/erazemk/idear/internal/api"
	"github.com/erazemk/idear/internal/inventory"
	"github.com/erazemk/idear/internal/model"
)

var _ = Describe("ElectricalGateway", func() {
	var (
		rs      *recordingServer
		gateway *inventory.ElectricalGateway
	)

	BeforeEach(func() {
		rs = newRecordingServer(map[string]any{"status": "ok"})
		gateway = inventory.NewElectricalGateway(newClient(rs.URL, staticToken("tok")), staticToken("tok"), nil, nil)
	})

	It("sends passive values in base units", func() {
		in := inventory.PassiveInput{
			Item:       model.PassiveItem{Subtype: "resistor", Value: 4.7, Count: 10},
			Multiplier: 1000,
		}
		Expect(gateway.Add(bg, in.Base())).To(Succeed())

		body := rs.lastBody()
		Expect(rs.lastPath()).To(Equal("/electricalAddItem"))
		Expect(body["type"]).To(Equal("passive"))
		Expect(body["value"]).To(BeNumerically("==", 4700))
		Expect(body["token"]).To(Equal("tok"))
		Expect(in.Item.Value).To(Equal(4.7))
	})

	It("converts passive search values to base units", func() {
		rs.reply(http.StatusOK, map[string]any{"data": []any{}})
		_, err := gateway.FindPassive(bg, inventory.PassiveQuery{Subtype: "capacitor", Value: 100, Multiplier: 1e-9})
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.lastQuery().Get("value")).To(Equal("1e-07"))
		Expect(rs.lastQuery().Get("item_type")).To(Equal("capacitor"))
	})

	It("removes passive and active parts through their own endpoints", func() {
		Expect(gateway.Remove(bg, &model.PassiveItem{ID: 4, Subtype: "resistor"})).To(Succeed())
		Expect(rs.lastPath()).To(Equal("/electricalRemovePassive"))
		Expect(rs.lastBody()["item"]).To(HaveKeyWithValue("id", BeNumerically("==", 4)))

		Expect(gateway.Remove(bg, &model.AssemblyItem{ID: 5, Name: "PSU"})).To(Succeed())
		Expect(rs.lastPath()).To(Equal("/electricalRemoveActive"))
		Expect(rs.lastBody()["item"]).To(HaveKeyWithValue("type", "assembly"))
	})

	It("sends the old name and part id next to the new ones on update", func() {
		old := &model.ActiveItem{ID: 9, Name: "NE555", PartID: 555}
		updated := &model.ActiveItem{ID: 9, Name: "LM555", PartID: 556}
		Expect(gateway.Update(bg, old, updated)).To(Succeed())

		body := rs.lastBody()
		Expect(body["name"]).To(Equal("NE555"))
		Expect(body["part_id"]).To(BeNumerically("==", 555))
		Expect(body["new_name"]).To(Equal("LM555"))
		Expect(body["new_part_id"]).To(BeNumerically("==", 556))
	})

	It("refuses to change the item type on update", func() {
		err := gateway.Update(bg, &model.ActiveItem{}, &model.PassiveItem{})
		Expect(err).To(HaveOccurred())
		Expect(rs.requests()).To(Equal(0))
	})

	It("adjusts counts optimistically", func() {
		rs.reply(http.StatusInternalServerError, map[string]any{"error": "boom"})
		item := &model.ActiveItem{ID: 2, Name: "NE555", Count: 10}

		Expect(gateway.AdjustCount(bg, item, 3, inventory.Decrement)).NotTo(Succeed())
		Expect(item.Count).To(Equal(7))
		Expect(rs.lastPath()).To(Equal("/electricalDecrement"))
		Expect(rs.lastBody()).To(HaveKeyWithValue("num", BeNumerically("==", 3)))
		Expect(rs.lastBody()).To(HaveKeyWithValue("type", "active"))
	})

	It("accepts a bare multiplier array", func() {
		rs.reply(http.StatusOK, []map[string]any{
			{"type": "resistor", "multiplier": []string{"", "k"}, "values": []float64{1, 1000}},
		})
		table, err := gateway.Multipliers(bg)
		Expect(err).NotTo(HaveOccurred())
		scale, ok := table.Scale("Resistor")
		Expect(ok).To(BeTrue())
		Expect(scale.Factor("k")).To(Equal(1000.0))
	})

	It("decodes a fuzzy passive page", func() {
		rs.reply(http.StatusOK, map[string]any{"data": map[string]any{
			"items": []map[string]any{{"value": 4300}, {"value": 4700}},
			"index": 1,
		}})
		page, err := gateway.FuzzyPassive(bg, inventory.PassiveQuery{Subtype: "resistor", Value: 4.7, Multiplier: 1000, SearchPercent: 0.1})
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Index).To(Equal(1))
		Expect(page.Length).To(Equal(2))
		Expect(rs.lastQuery().Get("search_percent")).To(Equal("0.1"))
	})
})

var _ = Describe("ElectricalGateway against the development backend", func() {
	var gateway *inventory.ElectricalGateway

	BeforeEach(func() {
		ts := api.NewTestServer(GinkgoTB())
		token := staticToken(ts.Token(GinkgoTB(), "admin", 0))
		gateway = inventory.NewElectricalGateway(newClient(ts.URL, token), token, nil, nil)
	})

	It("stores and finds a passive part by its display value", func() {
		in := inventory.PassiveInput{Item: model.PassiveItem{Subtype: "resistor", Value: 4.7, MountingMethod: "SMD", Count: 3}, Multiplier: 1000}
		Expect(gateway.Add(bg, in.Base())).To(Succeed())

		found, err := gateway.FindPassive(bg, inventory.PassiveQuery{Subtype: "resistor", Value: 4.7, Multiplier: 1000})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(inventory.DisplayValue(found[0], 1000)).To(Equal(4.7))

		Expect(gateway.AdjustCount(bg, found[0], 2, inventory.Increment)).To(Succeed())
		Expect(gateway.Remove(bg, found[0])).To(Succeed())

		found, err = gateway.FindPassive(bg, inventory.PassiveQuery{Subtype: "resistor", Value: 4700})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})

	It("renames an active part", func() {
		Expect(gateway.Add(bg, &model.ActiveItem{Name: "NE555", PartID: 555, Count: 1})).To(Succeed())
		found, err := gateway.FindActive(bg, "NE555", "555")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))

		updated := *found[0]
		updated.Name = "LM555"
		Expect(gateway.Update(bg, found[0], &updated)).To(Succeed())

		found, err = gateway.FuzzyActive(bg, "lm5", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].Name).To(Equal("LM555"))
	})

	It("lists parts below a threshold", func() {
		Expect(gateway.Add(bg, &model.ActiveItem{Name: "NE555", Count: 1})).To(Succeed())
		Expect(gateway.Add(bg, &model.PassiveItem{Subtype: "capacitor", Value: 1e-6, Count: 50})).To(Succeed())

		items, err := gateway.BelowThreshold(bg, inventory.ThresholdQuery{Threshold: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Kind()).To(Equal(model.TypeActive))
	})
})
