package analyzer

import (
	"github.com/politica-cm/politica-scanner/internal/extract"
	"github.com/politica-cm/politica-scanner/internal/model"
)

// Folded term lists per status class. A sentence is assigned the most
// terminal class it mentions, so "former minister" counts as Retired and
// not Active.
var (
	DeceasedTerms = []string{"died", "deceased", "death", "passed away", "mort", "decede"}
	RetiredTerms  = []string{"former", "ex-", "retired", "retraite", "ancien", "formerly", "honoraire"}
	ActiveTerms   = []string{"current", "serves", "serving", "incumbent", "minister", "deputy",
		"senator", "actuel", "ministre", "depute", "senateur", "en poste", "en fonction"}
)

// statusOrder breaks ties toward Active.
var statusOrder = []model.PersonStatus{model.StatusActive, model.StatusRetired, model.StatusDeceased}

// classifySentence returns the status a folded sentence supports, if any.
func classifySentence(folded string) (model.PersonStatus, bool) {
	switch {
	case extract.ContainsAny(folded, DeceasedTerms):
		return model.StatusDeceased, true
	case extract.ContainsAny(folded, RetiredTerms):
		return model.StatusRetired, true
	case extract.ContainsAny(folded, ActiveTerms):
		return model.StatusActive, true
	}
	return "", false
}

// ClassifyStatus infers a politician's status from sentences that mention
// them. With no classifiable sentence it returns Active at the status prior
// and ok=false.
func ClassifyStatus(entityName string, sentences []string) (status model.PersonStatus, confidence float64, ok bool) {
	keys := entityKeys(entityName)
	counts := make(map[model.PersonStatus]int, len(statusOrder))
	total := 0
	for _, s := range sentences {
		f := extract.Fold(s)
		if !extract.ContainsAny(f, keys) {
			continue
		}
		if st, hit := classifySentence(f); hit {
			counts[st]++
			total++
		}
	}
	if total == 0 {
		return model.StatusActive, PriorStatus, false
	}

	best := model.StatusActive
	for _, st := range statusOrder {
		if counts[st] > counts[best] {
			best = st
		}
	}
	share := float64(counts[best]) / float64(total)
	support := min(counts[best], 3)
	return best, min(0.35+0.5*share+0.05*float64(support), 0.95), true
}
