package ldup

import (
	"fmt"
	"strconv"
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// groupOrder keeps duplicate groups sorted by size (numerically) and then by
// hash. Each node's context carries the size rendered as a decimal key.
type groupOrder struct {
	skiplist *zcsl.ZeroCopySkiplist[DuplicateGroup, string, string]
}

// groupKey pads the size so that string order matches numeric order
func groupKey(group *DuplicateGroup) string {
	return fmt.Sprintf("%020d/%s", group.Size, group.Hash)
}

func newGroupOrder() *groupOrder {
	getKeyFromItem := func(group *DuplicateGroup) string {
		return groupKey(group)
	}

	getItemSize := func(group *DuplicateGroup) int {
		return len(group.Files)
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &groupOrder{
		skiplist: zcsl.MakeZeroCopySkiplist[DuplicateGroup, string, string](
			16,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Insert adds a group; a second group with the same size and hash is rejected
func (o *groupOrder) Insert(group DuplicateGroup) bool {
	return o.skiplist.Insert(&group, strconv.FormatUint(group.Size, 10))
}

// ForEach visits groups in order until the callback returns false
func (o *groupOrder) ForEach(callback func(group *DuplicateGroup, sizeKey string) bool) {
	for current := o.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item(), current.Context()) {
			break
		}
	}
}

// Length returns the number of groups held
func (o *groupOrder) Length() int {
	return o.skiplist.Length()
}
