package table

import "sync"

// 命名句柄注册表，宿主装配代码按名字发布和查找句柄
var (
	handleMu sync.RWMutex
	handles  = map[string]any{}
)

// Register 以名字发布一个句柄，重名时覆盖
func Register(name string, handle any) {
	handleMu.Lock()
	defer handleMu.Unlock()
	handles[name] = handle
}

// Lookup 按名字查找已发布的句柄
func Lookup(name string) (any, bool) {
	handleMu.RLock()
	defer handleMu.RUnlock()
	handle, ok := handles[name]
	return handle, ok
}

// LookupHandle 按名字查找并断言为具体实体类型的句柄
func LookupHandle[T any](name string) (*Handle[T], bool) {
	handle, ok := Lookup(name)
	if !ok {
		return nil, false
	}
	h, ok := handle.(*Handle[T])
	return h, ok
}
