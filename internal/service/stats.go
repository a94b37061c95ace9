package service

import (
	"context"
	"time"

	"memberclubserver/internal/domain"
)

type TokenIssuer interface {
	Issue(accountID string) (string, error)
	Verify(token string) (string, error)
}

type LoginStatsStore interface {
	SetLoginStats(ctx context.Context, accountID string, when time.Time, streak, total int) error
}

// nextLoginStats applies the streak rule: consecutive-day logins extend the
// streak, a gap resets it to 1, a same-day login leaves it alone. Engagement
// metric only; double counting under retries is accepted.
func nextLoginStats(now time.Time, lastLogin *time.Time, streak, total int) (int, int) {
	total++
	if lastLogin == nil {
		return 1, total
	}

	days := int(now.Sub(*lastLogin) / (24 * time.Hour))
	switch {
	case days == 1:
		streak++
	case days > 1:
		streak = 1
	}
	return streak, total
}

// finishLogin performs the stat update shared by every successful login path
// and mints the session token. The stat write is best-effort.
func finishLogin(ctx context.Context, accounts LoginStatsStore, tokens TokenIssuer, now time.Time, acct domain.Account) (string, error) {
	streak, total := nextLoginStats(now, acct.LastLoginAt, acct.LoginStreak, acct.TotalLogins)
	_ = accounts.SetLoginStats(ctx, acct.ID, now, streak, total)
	return tokens.Issue(acct.ID)
}
