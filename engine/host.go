package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HostModuleName is the import module guests use to reach the host.
const HostModuleName = "isolate"

// InitHost instantiates the host module exposing "log(level, ptr, len)".
// Guests pass a zap level (-1 debug .. 2 error) and a UTF-8 message in
// their exported memory.
func (e *Engine) InitHost(ctx context.Context) error {
	if e.runtime.Module(HostModuleName) != nil {
		return nil
	}
	_, err := e.runtime.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithFunc(guestLog).
		WithParameterNames("level", "ptr", "len").
		Export("log").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate host module: %w", err)
	}
	return nil
}

func guestLog(_ context.Context, mod api.Module, level int32, ptr, length uint32) {
	mem := mod.Memory()
	if mem == nil {
		Logger().Warn("guest log without memory", zap.String("module", mod.Name()))
		return
	}
	msg, ok := mem.Read(ptr, length)
	if !ok {
		Logger().Warn("guest log out of range",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("len", length))
		return
	}
	lvl := zapcore.InfoLevel
	if level >= int32(zapcore.DebugLevel) && level <= int32(zapcore.ErrorLevel) {
		lvl = zapcore.Level(level)
	}
	if ce := Logger().Check(lvl, string(msg)); ce != nil {
		ce.Write(zap.String("module", mod.Name()))
	}
}
