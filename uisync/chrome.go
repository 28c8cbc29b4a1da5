package uisync

// actions offered by a fatal error dialog
type FatalAction string

const (
	FatalActionRetry  FatalAction = "retry"
	FatalActionReload FatalAction = "reload"
	FatalActionIgnore FatalAction = "ignore"
	FatalActionOk     FatalAction = "ok"
)

type FatalError struct {
	Code    int
	Message string
	Actions []FatalAction
}

// the ui chrome around the session: busy spinner and fatal error dialog.
// the sync engine only decides when to show and hide them, not how.
type Chrome interface {
	// cancel is invoked when the user hits the cancel action on the indicator
	ShowBusyIndicator(cancel func())
	// non-cancellable visual state after a cancel action
	SetBusyIndicatorCancelling()
	HideBusyIndicator()

	// choose is called with the action the user picked
	ShowFatalError(fatalError *FatalError, choose func(action FatalAction))

	Reload()
	Redirect(url string)
}

type NoopChrome struct {
}

func NewNoopChrome() *NoopChrome {
	return &NoopChrome{}
}

func (self *NoopChrome) ShowBusyIndicator(cancel func()) {
}

func (self *NoopChrome) SetBusyIndicatorCancelling() {
}

func (self *NoopChrome) HideBusyIndicator() {
}

func (self *NoopChrome) ShowFatalError(fatalError *FatalError, choose func(action FatalAction)) {
}

func (self *NoopChrome) Reload() {
}

func (self *NoopChrome) Redirect(url string) {
}
