package loan

import (
	"errors"
	"time"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidAmount     = errors.New("loan: amount must be positive")
	ErrNotActive         = errors.New("loan: not active")
	ErrAlreadyDisbursed  = errors.New("loan: already disbursed")
	ErrNotDisbursed      = errors.New("loan: not disbursed")
	ErrNotFullyRepaid    = errors.New("loan: principal not fully repaid")
	ErrUnauthorized      = errors.New("loan: caller not authorized")
	ErrInvalidFee        = errors.New("loan: invalid fee settings")
	ErrSettingsNotFound  = errors.New("loan: fee settings not configured")
	ErrPrincipalOverpaid = errors.New("loan: principal repaid exceeds principal")
)

type State string

const (
	StateRequested State = "requested"
	StateDisbursed State = "disbursed"
	StateClosed    State = "closed"
)

// SecondsPerYear fixes the accrual year at 365 days.
const SecondsPerYear = 365 * 24 * 60 * 60

// Table: loans. ID is the sequential public loan id.
type Loan struct {
	ID              uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"loan_id"`
	PoolID          uint64       `gorm:"column:pool_id;not null;index" json:"pool_id"`
	Borrower        string       `gorm:"column:borrower;size:42;not null;index:idx_loans_borrower" json:"borrower"`
	Principal       money.Amount `gorm:"column:principal;type:varchar(78);not null" json:"principal"`
	PrincipalRepaid money.Amount `gorm:"column:principal_repaid;type:varchar(78);not null" json:"principal_repaid"`
	InterestPaid    money.Amount `gorm:"column:interest_paid;type:varchar(78);not null" json:"interest_paid"`
	AprBps          money.Bps    `gorm:"column:apr_bps;not null" json:"apr_bps"`
	Duration        uint64       `gorm:"column:duration;not null" json:"duration"`
	// Unix seconds; both zero until disbursed.
	StartTime       int64     `gorm:"column:start_time;not null;default:0" json:"start_time"`
	LastPaymentTime int64     `gorm:"column:last_payment_time;not null;default:0" json:"last_payment_time"`
	Active          bool      `gorm:"column:active;not null" json:"active"`
	Disbursed       bool      `gorm:"column:disbursed;not null" json:"disbursed"`
	Metadata        string    `gorm:"column:metadata;type:text" json:"metadata"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

func (l *Loan) State() State {
	switch {
	case !l.Active:
		return StateClosed
	case l.Disbursed:
		return StateDisbursed
	default:
		return StateRequested
	}
}

func (l *Loan) RemainingPrincipal() (money.Amount, error) {
	rem, err := l.Principal.Sub(l.PrincipalRepaid)
	if err != nil {
		return money.Zero(), ErrPrincipalOverpaid
	}
	return rem, nil
}

// AccruedInterest is simple interest on the remaining principal since the
// last payment: floor(remaining * apr * elapsed / (10000 * SecondsPerYear)).
func (l *Loan) AccruedInterest(now int64) (money.Amount, error) {
	if !l.Active || !l.Disbursed {
		return money.Zero(), nil
	}
	remaining, err := l.RemainingPrincipal()
	if err != nil {
		return money.Zero(), err
	}
	if remaining.IsZero() || now <= l.LastPaymentTime {
		return money.Zero(), nil
	}
	elapsed := money.FromUint64(uint64(now - l.LastPaymentTime))
	scaled, err := remaining.Mul(money.FromUint64(uint64(l.AprBps)))
	if err != nil {
		return money.Zero(), err
	}
	return money.MulDiv(scaled, elapsed, money.FromUint64(money.BpsDenominator*SecondsPerYear))
}

// TotalOwed is remaining principal plus accrued interest.
func (l *Loan) TotalOwed(now int64) (money.Amount, error) {
	remaining, err := l.RemainingPrincipal()
	if err != nil {
		return money.Zero(), err
	}
	interest, err := l.AccruedInterest(now)
	if err != nil {
		return money.Zero(), err
	}
	return remaining.Add(interest)
}

// Split is how one repayment is applied.
type Split struct {
	Interest  money.Amount `json:"interest"`
	Principal money.Amount `json:"principal"`
	Fee       money.Amount `json:"fee"`
	// Pulled is what the payer actually pays: Interest + Principal.
	Pulled money.Amount `json:"pulled"`
	// ToVault is Principal + Interest - Fee.
	ToVault money.Amount `json:"to_vault"`
}

// SplitRepayment applies the interest-first waterfall. Anything above
// interestDue + remaining is not taken.
func SplitRepayment(amount, interestDue, remaining money.Amount, feeBps money.Bps) (Split, error) {
	var s Split
	if !amount.Gt(interestDue) {
		s.Interest = amount
		s.Principal = money.Zero()
	} else {
		s.Interest = interestDue
		rest, err := amount.Sub(interestDue)
		if err != nil {
			return Split{}, err
		}
		s.Principal = rest.Min(remaining)
	}
	fee, err := money.MulBps(s.Interest, feeBps)
	if err != nil {
		return Split{}, err
	}
	s.Fee = fee
	if s.Pulled, err = s.Interest.Add(s.Principal); err != nil {
		return Split{}, err
	}
	if s.ToVault, err = s.Pulled.Sub(s.Fee); err != nil {
		return Split{}, err
	}
	return s, nil
}

// Apply books a split onto the loan at time now.
func (l *Loan) Apply(s Split, now int64) error {
	repaid, err := l.PrincipalRepaid.Add(s.Principal)
	if err != nil {
		return err
	}
	if repaid.Gt(l.Principal) {
		return ErrPrincipalOverpaid
	}
	paid, err := l.InterestPaid.Add(s.Interest)
	if err != nil {
		return err
	}
	l.PrincipalRepaid = repaid
	l.InterestPaid = paid
	l.LastPaymentTime = now
	return nil
}

// Table: loan_settings. Protocol fee routing, one row per pool.
type Settings struct {
	PoolID      uint64    `gorm:"column:pool_id;primaryKey" json:"pool_id"`
	AgentFeeBps money.Bps `gorm:"column:agent_fee_bps;not null" json:"agent_fee_bps"`
	Treasury    string    `gorm:"column:treasury;size:42;not null" json:"treasury"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Settings) TableName() string { return "loan_settings" }

func (s *Settings) Check() error {
	if !s.AgentFeeBps.Valid() || s.Treasury == "" {
		return ErrInvalidFee
	}
	return nil
}
