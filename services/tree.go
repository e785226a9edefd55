package services

import (
	"sort"
	"time"

	"tabforum/models"
)

// AssembleTree nests a flat recursively-fetched row list into parent/children
// form. Rows whose parent is not part of the list become roots themselves,
// so a walk anchored below the real root still assembles. Every children
// list is sorted by the strategy before descending.
func AssembleTree(rows []models.Content, strategy models.Strategy, now time.Time) []*models.Content {
	nodes := make([]*models.Content, len(rows))
	table := make(map[string]*models.Content, len(rows))
	for i := range rows {
		node := &rows[i]
		node.Children = []*models.Content{}
		nodes[i] = node
		table[node.ID.String()] = node
	}

	var roots []*models.Content
	for _, node := range nodes {
		if node.ParentID != nil {
			if parent, ok := table[node.ParentID.String()]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortTreeRecursively(roots, strategy, now)
	return roots
}

func sortTreeRecursively(nodes []*models.Content, strategy models.Strategy, now time.Time) {
	sortByStrategy(nodes, strategy, now)
	for _, node := range nodes {
		sortTreeRecursively(node.Children, strategy, now)
	}
}

func sortByStrategy(nodes []*models.Content, strategy models.Strategy, now time.Time) {
	switch strategy {
	case models.StrategyNew:
		sort.SliceStable(nodes, func(a, b int) bool {
			return publishedAfter(nodes[a], nodes[b])
		})
	case models.StrategyOld:
		sort.SliceStable(nodes, func(a, b int) bool {
			return publishedAfter(nodes[b], nodes[a])
		})
	default:
		rankPointersByRelevance(nodes, now)
	}
}

func publishedAfter(a, b *models.Content) bool {
	if a.PublishedAt == nil {
		return false
	}
	if b.PublishedAt == nil {
		return true
	}
	return a.PublishedAt.After(*b.PublishedAt)
}
