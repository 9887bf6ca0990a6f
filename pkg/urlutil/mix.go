package urlutil

import "github.com/Sriram-PR/img-rotator/pkg/models"

// Mix interleaves per-site candidate lists round-robin: index 0 of every site, then index 1, and so on.
// Exhausted sites drop out. Group order is the site list order.
func Mix(groups []models.CandidateGroup) []models.Candidate {
	total, longest := 0, 0
	for _, g := range groups {
		total += len(g.URLs)
		longest = max(longest, len(g.URLs))
	}

	out := make([]models.Candidate, 0, total)
	for i := 0; i < longest; i++ {
		for _, g := range groups {
			if i < len(g.URLs) {
				out = append(out, models.Candidate{Site: g.Site, Dirname: g.Dirname, URL: g.URLs[i]})
			}
		}
	}
	return out
}
