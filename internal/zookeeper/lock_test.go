package zookeeper

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceOf_OrdersProtectedNodes(t *testing.T) {
	children := []string{
		"_c_0000-lock-0000000012",
		"_c_ffff-lock-0000000010",
		"_c_9c00-lock-0000000011",
	}
	sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

	assert.Equal(t, []string{
		"_c_ffff-lock-0000000010",
		"_c_9c00-lock-0000000011",
		"_c_0000-lock-0000000012",
	}, children)
}

func TestConnect_NoServers(t *testing.T) {
	_, err := Connect(" , ", 0)
	assert.Error(t, err)
}
