package dispatch

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// evalExpr evaluates body as a single Lua expression. The task environment
// is visible as the table env and the extra arguments as the array args.
func evalExpr(ctx context.Context, body string, env map[string]string, args []string) (string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return "", fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	envTbl := L.NewTable()
	for k, v := range env {
		envTbl.RawSetString(k, lua.LString(v))
	}
	L.SetGlobal("env", envTbl)

	argsTbl := L.NewTable()
	for _, a := range args {
		argsTbl.Append(lua.LString(a))
	}
	L.SetGlobal("args", argsTbl)

	if err := L.DoString("return (" + body + ")"); err != nil {
		return "", fmt.Errorf("evaluate %q: %w", body, err)
	}
	result := L.Get(-1)
	L.Pop(1)
	return result.String(), nil
}
