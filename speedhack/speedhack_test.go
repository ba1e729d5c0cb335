package speedhack_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/patchsim/speedhack"
)

type pair struct{ key, value string }

// keyValues is an ordered key/value section store.
type keyValues map[string][]pair

func (kv keyValues) GetKeys(section string) []string {
	var keys []string
	for _, p := range kv[section] {
		keys = append(keys, p.key)
	}
	return keys
}

func (kv keyValues) Get(section, key string) (string, bool) {
	value, found := "", false
	for _, p := range kv[section] {
		if p.key == key {
			value, found = p.value, true
		}
	}
	return value, found
}

var _ = Describe("Table", func() {
	var table *speedhack.Table

	BeforeEach(func() {
		table = speedhack.NewTable()
	})

	It("should return 0 for addresses without a hint", func() {
		Expect(table.Cycles(0x80001234)).To(Equal(0))
	})

	It("should load hex keys and decimal values", func() {
		src := keyValues{
			speedhack.Section: {
				{"0x80001234", "300"},
				{"0x80005678", "0x10"},
			},
		}

		skipped := table.Load(speedhack.Section, src)

		Expect(skipped).To(Equal(0))
		Expect(table.Len()).To(Equal(2))
		Expect(table.Cycles(0x80001234)).To(Equal(300))
		Expect(table.Cycles(0x80005678)).To(Equal(16))
	})

	It("should skip keys that do not parse without stopping", func() {
		src := keyValues{
			speedhack.Section: {
				{"bogus", "300"},
				{"0x80000010", "lots"},
				{"0x80000020", "5"},
			},
		}

		skipped := table.Load(speedhack.Section, src)

		Expect(skipped).To(Equal(2))
		Expect(table.Len()).To(Equal(1))
		Expect(table.Cycles(0x80000020)).To(Equal(5))
	})

	It("should read values as signed words", func() {
		table.Load(speedhack.Section, keyValues{speedhack.Section: {{"0x80000020", "0xFFFFFFFF"}}})

		Expect(table.Cycles(0x80000020)).To(Equal(-1))
	})

	It("should overwrite hints on reload and forget them on clear", func() {
		table.Load(speedhack.Section, keyValues{speedhack.Section: {{"0x80000020", "5"}}})
		table.Load(speedhack.Section, keyValues{speedhack.Section: {{"0x80000020", "7"}}})

		Expect(table.Cycles(0x80000020)).To(Equal(7))

		table.Clear()

		Expect(table.Len()).To(Equal(0))
		Expect(table.Cycles(0x80000020)).To(Equal(0))
	})
})
