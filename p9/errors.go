package p9

import "errors"

// ErrMalformed is returned by UnpackFcall/Msg2Fcall when a message's
// declared lengths run past the bytes actually available.
var ErrMalformed = errors.New("9p: malformed message")
