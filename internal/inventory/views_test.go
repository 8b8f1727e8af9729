package inventory_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/erazemk/idear/internal/inventory"
)

var _ = Describe("LiveList", func() {
	It("reloads on changes in its scope only", func() {
		changes := inventory.NewChanges()
		var loads atomic.Int32
		list := inventory.NewLiveList(func(context.Context) ([]int, error) {
			n := int(loads.Add(1))
			return []int{n}, nil
		}, changes, inventory.ScopeGeneral, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- list.Run(ctx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		Eventually(loads.Load).Should(BeEquivalentTo(1))

		changes.Publish(inventory.Change{Scope: inventory.ScopeElectrical, Op: inventory.OpCreate})
		Consistently(loads.Load, "50ms").Should(BeEquivalentTo(1))

		changes.Publish(inventory.Change{Scope: inventory.ScopeGeneral, Op: inventory.OpRemove})
		Eventually(loads.Load).Should(BeEquivalentTo(2))
		Eventually(func() []int {
			items, _ := list.Items()
			return items
		}).Should(Equal([]int{2}))
	})

	It("keeps the last good list when a reload fails", func() {
		fail := false
		list := inventory.NewLiveList(func(context.Context) ([]string, error) {
			if fail {
				return nil, errors.New("offline")
			}
			return []string{"a"}, nil
		}, inventory.NewChanges(), inventory.ScopeGeneral, nil)

		Expect(list.Reload(context.Background())).To(Succeed())
		fail = true
		Expect(list.Reload(context.Background())).To(MatchError("offline"))

		items, err := list.Items()
		Expect(items).To(Equal([]string{"a"}))
		Expect(err).To(MatchError("offline"))
	})

	It("publishes reloaded lists", func() {
		list := inventory.NewLiveList(func(context.Context) ([]string, error) {
			return []string{"x", "y"}, nil
		}, inventory.NewChanges(), inventory.ScopeElectrical, nil)
		updates, cancel := list.Updates.Subscribe()
		defer cancel()

		Expect(list.Reload(context.Background())).To(Succeed())
		Eventually(updates).Should(Receive(Equal([]string{"x", "y"})))
	})
})

var _ = Describe("SearchView", func() {
	It("discards results of a search that was overtaken", func() {
		view := inventory.NewSearchView[string]()
		release := make(chan struct{})
		started := make(chan struct{})

		type outcome struct {
			results []string
			shown   bool
		}
		slow := make(chan outcome, 1)
		go func() {
			defer GinkgoRecover()
			results, shown, err := view.Search(context.Background(), func(context.Context) ([]string, error) {
				close(started)
				<-release
				return []string{"old"}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			slow <- outcome{results, shown}
		}()

		Eventually(started).Should(BeClosed())
		results, shown, err := view.Search(context.Background(), func(context.Context) ([]string, error) {
			return []string{"new"}, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(shown).To(BeTrue())
		Expect(results).To(Equal([]string{"new"}))

		close(release)
		var o outcome
		Eventually(slow).Should(Receive(&o))
		Expect(o.shown).To(BeFalse())
		Expect(o.results).To(Equal([]string{"old"}))
		Expect(view.Current()).To(Equal([]string{"new"}))
	})

	It("does not replace results when a search fails", func() {
		view := inventory.NewSearchView[int]()
		_, _, err := view.Search(context.Background(), func(context.Context) ([]int, error) { return []int{1}, nil })
		Expect(err).NotTo(HaveOccurred())

		_, shown, err := view.Search(context.Background(), func(context.Context) ([]int, error) {
			return nil, errors.New("timeout")
		})
		Expect(err).To(HaveOccurred())
		Expect(shown).To(BeFalse())
		Expect(view.Current()).To(Equal([]int{1}))
	})
})
