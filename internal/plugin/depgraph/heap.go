// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package depgraph

import "container/heap"

// keyHeap is a min-heap of plugin keys.
type keyHeap []string

var _ heap.Interface = (*keyHeap)(nil)

func (h keyHeap) Len() int           { return len(h) }
func (h keyHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h keyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *keyHeap) Push(x any) {
	*h = append(*h, x.(string)) //nolint:forcetypeassert // only strings are pushed
}

func (h *keyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
