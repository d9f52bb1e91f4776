package unwind

// Flag classifies the statement a report record describes.
type Flag string

const (
	// FlagUnknown marks a frame whose source is unavailable.
	FlagUnknown Flag = "unknown"
	// FlagActive marks a statement that raised the error itself.
	FlagActive Flag = "active"
	// FlagCall marks a statement calling a callable.
	FlagCall Flag = "call_callable"
	// FlagAwait marks a statement awaiting an awaitable.
	FlagAwait Flag = "await_awaitable"
	// FlagEnter marks a statement entering a context.
	FlagEnter Flag = "enter_context"
	// FlagIter marks a statement iterating over an iterable.
	FlagIter Flag = "iter_iterable"
	// FlagOperate marks a statement that only operates on variables.
	FlagOperate Flag = "operate"
)

// String returns the string representation of the Flag.
func (f Flag) String() string { return string(f) }

var flagDescriptions = map[Flag][]string{
	FlagUnknown: {"the source of this frame could not be retrieved", "无法获取此处的代码, 请检查代码逻辑"},
	FlagActive:  {"this statement raised the error", "此处代码主动抛出了一个错误"},
	FlagCall:    {"this statement is calling a callable", "此处代码正在调用一个可调用对象"},
	FlagAwait:   {"this statement is awaiting an awaitable", "此处代码正在等待一个可等待对象"},
	FlagEnter:   {"this statement is entering a context", "此处代码正在进入一个上下文"},
	FlagIter:    {"this statement is iterating over an iterable", "此处代码正在遍历一个可迭代对象"},
	FlagOperate: {"this statement is operating on variables", "此处代码正在进行变量操作"},
}

// Describe returns a human-readable description of the flag in the
// locale that best matches the given BCP 47 tag. English is the fallback.
// Unknown flags describe as their own string.
func (f Flag) Describe(locale string) string {
	d, ok := flagDescriptions[f]
	if !ok {
		return string(f)
	}
	return d[matchLocale(locale)]
}

// payload identifies which Record payload a flag selects.
type payload int

const (
	payloadOperation payload = iota
	payloadException
	payloadCall
)

func (f Flag) payload() payload {
	switch f {
	case FlagActive:
		return payloadException
	case FlagCall, FlagAwait, FlagEnter, FlagIter:
		return payloadCall
	default:
		return payloadOperation
	}
}
