package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ EventHandler           = (*Service)(nil)
	_ PendingReconcileRunner = (*Service)(nil)
	_ StoreProvider          = (*MemoryStore)(nil)
	_ OrderLocker            = (*MemoryOrderLocker)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
