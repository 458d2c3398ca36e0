package intelligence

import (
	"github.com/pkg/errors"
	"github.com/weaviate/tiktoken-go"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// CountTokens returns the cl100k_base token count of the whole history.
// The count covers content only, not the per-message framing overhead the
// provider adds, so budgets should leave a little headroom.
func CountTokens(turns []messages.Turn) (int, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, errors.Wrap(err, "could not initialize tokenizer")
	}

	total := 0
	for _, turn := range turns {
		total += len(encoder.Encode(turn.Content, nil, nil))
	}
	return total, nil
}

// TruncateToBudget drops the oldest non-system turns until the history
// fits the budget. System turns are always kept, as are trailing turns
// that fit. If even the kept turns exceed the budget the result is
// returned as-is rather than cut mid-message.
func TruncateToBudget(turns []messages.Turn, budget int) ([]messages.Turn, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize tokenizer")
	}

	counts := make([]int, len(turns))
	total := 0
	for idx, turn := range turns {
		counts[idx] = len(encoder.Encode(turn.Content, nil, nil))
		total += counts[idx]
	}
	if total <= budget {
		return turns, nil
	}

	dropped := make([]bool, len(turns))
	for idx, turn := range turns {
		if total <= budget {
			break
		}
		if turn.Role == string(messages.RoleSystem) {
			continue
		}
		dropped[idx] = true
		total -= counts[idx]
	}

	ret := make([]messages.Turn, 0, len(turns))
	for idx, turn := range turns {
		if !dropped[idx] {
			ret = append(ret, turn)
		}
	}
	return ret, nil
}
