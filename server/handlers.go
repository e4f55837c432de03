package server

// Handlers is the callback table a file service implements. Every
// field except Attach is optional; an unset one answers its request
// type with "function not implemented", matching a conn that never
// advertised the operation. The exception is Clunk: an unset Clunk
// answers Rclunk and the fid is still released.
//
// A handler receives a Req9 with validation already done — fids
// resolved, modes checked, duplicate tags and fids rejected — and is
// expected to call Req9.Respond exactly once, synchronously or from
// another goroutine it spawns.
type Handlers struct {
	Attach func(r *Req9)
	Walk   func(r *Req9)
	Open   func(r *Req9)
	Create func(r *Req9)
	Read   func(r *Req9)
	Write  func(r *Req9)
	Clunk  func(r *Req9)
	Remove func(r *Req9)
	Stat   func(r *Req9)
	WStat  func(r *Req9)
	Flush  func(r *Req9)

	// FreeFid runs after a fid is removed from the conn's table,
	// whatever the reason (Tclunk, Tremove, or connection teardown),
	// so handlers can release Aux resources exactly once.
	FreeFid func(f *Fid)
}
