package metrics

import "time"

// RPCRequest records one outbound chain RPC call.
func RPCRequest(chain, method string, err error, d time.Duration) {
	if !enabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	rpcRequestsTotal.WithLabelValues(chain, method, status).Inc()
	rpcDuration.WithLabelValues(chain, method).Observe(d.Seconds())
}

// Verification records the outcome of one verification run.
func Verification(tier string, success bool) {
	if !enabled {
		return
	}
	result := "fail"
	if success {
		result = "success"
	}
	verificationTotal.WithLabelValues(tier, result).Inc()
}

// QuestCompleted records a newly stored quest completion.
func QuestCompleted(questID string) {
	if !enabled {
		return
	}
	questCompletionsTotal.WithLabelValues(questID).Inc()
}

// StepCompleted records a newly stored step completion.
func StepCompleted(questID string) {
	if !enabled {
		return
	}
	stepCompletionsTotal.WithLabelValues(questID).Inc()
}

// XPAwarded records XP credited to a user.
func XPAwarded(amount int64) {
	if !enabled || amount <= 0 {
		return
	}
	xpAwardedTotal.Add(float64(amount))
}

// SyncChecked records how many quests a sync request verified.
func SyncChecked(n int) {
	if !enabled {
		return
	}
	syncQuestsChecked.Observe(float64(n))
}

// RateLimited records a request rejected by the named budget.
func RateLimited(budget string) {
	if !enabled {
		return
	}
	rateLimitedTotal.WithLabelValues(budget).Inc()
}
