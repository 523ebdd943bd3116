// Package score rates labelled link predictions by the area under their ROC and precision/recall
// curves, and by their NDCG.
package score

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Prediction is one scored candidate pair and whether it is a true link.
type Prediction struct {
	Score float64
	Label bool
}

// Scores summarizes a set of predictions.
type Scores struct {
	AUROC       float64
	AUPR        float64
	NDCG        float64 // mean over rows; see ndcg
	NumPositive int
	NumNegative int
}

// ReadPredictions reads whitespace-separated rows whose last two fields are "<score> <label>",
// where label is 0 or 1.  Leading fields (typically the node pair) are ignored, as are blank and '#' lines.
func ReadPredictions(r io.Reader) ([]Prediction, error) {
	var preds []Prediction

	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Errorf("prediction line %d: expected <score> <label>", lineNum)
		}
		n := len(fields)
		score, err := strconv.ParseFloat(fields[n-2], 64)
		if err != nil || math.IsNaN(score) {
			return nil, errors.Errorf("prediction line %d: bad score %q", lineNum, fields[n-2])
		}
		var label bool
		switch fields[n-1] {
		case "0":
		case "1":
			label = true
		default:
			return nil, errors.Errorf("prediction line %d: label %q is not 0 or 1", lineNum, fields[n-1])
		}
		preds = append(preds, Prediction{
			Score: score,
			Label: label,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return preds, nil
}

// Score computes AUROC, AUPR, and NDCG of the given predictions, treating equal scores as a single threshold.
// Returns gopredict.ErrOneClass unless there is at least one positive and one negative.
func Score(preds []Prediction) (Scores, error) {
	var sc Scores

	y := make([]float64, len(preds))
	classes := make([]bool, len(preds))
	for i, p := range preds {
		y[i] = p.Score
		classes[i] = p.Label
		if p.Label {
			sc.NumPositive++
		} else {
			sc.NumNegative++
		}
	}
	if sc.NumPositive == 0 || sc.NumNegative == 0 {
		return sc, errors.Wrapf(gopredict.ErrOneClass, "%d positive, %d negative", sc.NumPositive, sc.NumNegative)
	}

	sc.NDCG = ndcg(preds)

	stat.SortWeightedLabeled(y, classes, nil)

	// Points run from the +Inf threshold (nothing predicted) down to the lowest score (everything predicted).
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	sc.AUROC = integrate.Trapezoidal(fpr, tpr)
	sc.AUPR = areaUnderPR(tpr, fpr, float64(sc.NumPositive), float64(sc.NumNegative))
	return sc, nil
}

// areaUnderPR derives the precision/recall curve from ROC points.
// The curve starts at recall 0 with precision 1 and ends at the first threshold reaching full recall.
func areaUnderPR(tpr, fpr []float64, nPos, nNeg float64) float64 {
	recall := make([]float64, 0, len(tpr))
	precision := make([]float64, 0, len(tpr))

	recall = append(recall, 0)
	precision = append(precision, 1)
	for i := 1; i < len(tpr); i++ {
		tp := math.Round(tpr[i] * nPos)
		fp := math.Round(fpr[i] * nNeg)
		recall = append(recall, tp/nPos)
		precision = append(precision, tp/(tp+fp))
		if tp == nPos {
			break
		}
	}
	return integrate.Trapezoidal(recall, precision)
}

// ndcg treats each prediction as a ranking of two items, "no link" scored 1-Score and "link"
// scored Score, of which only the item matching the label is relevant.  Its NDCG is 1 if the
// relevant item ranks first and 1/log2(3) if second.  Tied items share the mean of their gains.
func ndcg(preds []Prediction) float64 {
	second := 1 / math.Log2(3)
	tied := (1 + second) / 2

	gains := make([]float64, len(preds))
	for i, p := range preds {
		hit, miss := p.Score, 1-p.Score
		if !p.Label {
			hit, miss = miss, hit
		}
		switch {
		case hit > miss:
			gains[i] = 1
		case hit < miss:
			gains[i] = second
		default:
			gains[i] = tied
		}
	}
	return stat.Mean(gains, nil)
}
