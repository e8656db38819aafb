// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("name cache", func() {

	It("tolerates absence", func() {
		c := NewNameCache()
		name, ok := c.Get("192.0.2.1")
		Expect(ok).To(BeFalse())
		Expect(name).To(BeEmpty())
	})

	It("keeps the last successful resolution", func() {
		c := NewNameCache()
		c.Put("192.0.2.1", "one.example.org")
		c.Put("192.0.2.1", "two.example.org")
		name, ok := c.Get("192.0.2.1")
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("two.example.org"))
	})

	It("never lets absence displace a success", func() {
		c := NewNameCache()
		c.Put("192.0.2.1", "one.example.org")
		c.Put("192.0.2.1", "")
		name, ok := c.Get("192.0.2.1")
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("one.example.org"))
	})

	It("survives concurrent readers and writers", func() {
		c := NewNameCache()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				addr := fmt.Sprintf("192.0.2.%d", i)
				for j := 0; j < 100; j++ {
					c.Put(addr, fmt.Sprintf("host-%d.example.org", i))
					_, _ = c.Get(addr)
				}
			}(i)
		}
		wg.Wait()
		for i := 0; i < 8; i++ {
			name, ok := c.Get(fmt.Sprintf("192.0.2.%d", i))
			Expect(ok).To(BeTrue())
			Expect(name).To(Equal(fmt.Sprintf("host-%d.example.org", i)))
		}
	})

})
