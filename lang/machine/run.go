package machine

import (
	"fmt"

	"github.com/mna/eclox/lang/compiler"
)

// run executes instructions from the current call frame until the
// outermost frame returns or a runtime error aborts execution. Dispatch is
// a single switch over the opcode byte; operands follow each opcode
// immediately, 1 byte for indices and argument counts, 2 big-endian bytes
// for jump and loop offsets.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Fn.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() Value { return frame.closure.Fn.Constants[readByte()] }

	for {
		op := compiler.Opcode(readByte())
		switch op {
		case compiler.OP_CONSTANT:
			vm.push(readConstant())

		case compiler.OP_NIL:
			vm.push(Nil{})
		case compiler.OP_TRUE:
			vm.push(Bool(true))
		case compiler.OP_FALSE:
			vm.push(Bool(false))
		case compiler.OP_POP:
			vm.pop()

		case compiler.OP_GET_LOCAL:
			slot := readByte()
			vm.push(vm.stack[frame.base+int(slot)])
		case compiler.OP_SET_LOCAL:
			slot := readByte()
			vm.stack[frame.base+int(slot)] = vm.peek(0)

		case compiler.OP_GET_GLOBAL:
			name := readConstant().(*ObjString)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}
			vm.push(v)
		case compiler.OP_DEFINE_GLOBAL:
			name := readConstant().(*ObjString)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case compiler.OP_SET_GLOBAL:
			name := readConstant().(*ObjString)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}

		case compiler.OP_GET_UPVALUE:
			slot := readByte()
			vm.push(frame.closure.Upvalues[slot].value())
		case compiler.OP_SET_UPVALUE:
			slot := readByte()
			frame.closure.Upvalues[slot].set(vm.peek(0))

		case compiler.OP_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))
		case compiler.OP_GREATER, compiler.OP_LESS:
			if err := vm.binaryCompare(op); err != nil {
				return err
			}
		case compiler.OP_ADD:
			if err := vm.add(); err != nil {
				return err
			}
		case compiler.OP_SUBTRACT, compiler.OP_MULTIPLY, compiler.OP_DIVIDE:
			if err := vm.binaryArith(op); err != nil {
				return err
			}

		case compiler.OP_NOT:
			vm.push(Bool(!Truthy(vm.pop())))
		case compiler.OP_NEGATE:
			n, ok := vm.peek(0).(Number)
			if !ok {
				return vm.runtimeError("operand must be a number")
			}
			vm.pop()
			vm.push(-n)

		case compiler.OP_PRINT:
			fmt.Fprintln(vm.stdout, Print(vm.pop()))

		case compiler.OP_JUMP:
			offset := readShort()
			frame.ip += offset
		case compiler.OP_JUMP_IF_FALSE:
			offset := readShort()
			if !Truthy(vm.peek(0)) {
				frame.ip += offset
			}
		case compiler.OP_LOOP:
			offset := readShort()
			frame.ip -= offset

		case compiler.OP_CALL:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case compiler.OP_CLOSURE:
			fnVal := readConstant()
			fn, ok := fnVal.(*ObjFunction)
			if !ok {
				return vm.runtimeError("internal error: CLOSURE constant is not a function")
			}
			closure := vm.newClosure(fn)
			// pushed before capturing so a collection triggered by an
			// upvalue allocation can still reach the closure
			vm.push(closure)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.base + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case compiler.OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case compiler.OP_RETURN:
			result := vm.pop()
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.base
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}
	}
}

func (vm *VM) binaryArith(op compiler.Opcode) error {
	b, bok := vm.peek(0).(Number)
	a, aok := vm.peek(1).(Number)
	if !aok || !bok {
		return vm.runtimeError("operands must be numbers")
	}
	vm.pop()
	vm.pop()
	switch op {
	case compiler.OP_SUBTRACT:
		vm.push(a - b)
	case compiler.OP_MULTIPLY:
		vm.push(a * b)
	case compiler.OP_DIVIDE:
		vm.push(a / b)
	}
	return nil
}

func (vm *VM) binaryCompare(op compiler.Opcode) error {
	b, bok := vm.peek(0).(Number)
	a, aok := vm.peek(1).(Number)
	if !aok || !bok {
		return vm.runtimeError("operands must be numbers")
	}
	vm.pop()
	vm.pop()
	switch op {
	case compiler.OP_GREATER:
		vm.push(Bool(a > b))
	case compiler.OP_LESS:
		vm.push(Bool(a < b))
	}
	return nil
}

// add implements OP_ADD's dual behavior: numeric addition or string
// concatenation, rejecting any other operand combination.
func (vm *VM) add() error {
	bStr, bIsStr := vm.peek(0).(*ObjString)
	aStr, aIsStr := vm.peek(1).(*ObjString)
	if aIsStr && bIsStr {
		vm.pop()
		vm.pop()
		vm.push(vm.concatenate(aStr, bStr))
		return nil
	}

	bNum, bIsNum := vm.peek(0).(Number)
	aNum, aIsNum := vm.peek(1).(Number)
	if aIsNum && bIsNum {
		vm.pop()
		vm.pop()
		vm.push(aNum + bNum)
		return nil
	}

	return vm.runtimeError("operands must be two numbers or two strings")
}

// callValue dispatches a call to whatever is callable: a closure pushes a
// new CallFrame, a native function runs immediately in Go.
func (vm *VM) callValue(callee Value, argCount int) error {
	switch callee := callee.(type) {
	case *ObjClosure:
		return vm.call(callee, argCount)
	case *ObjNative:
		args := append([]Value(nil), vm.stack[vm.stackTop-argCount:vm.stackTop]...)
		result, err := callee.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	default:
		return vm.runtimeError("can only call functions")
	}
}

func (vm *VM) call(closure *ObjClosure, argCount int) error {
	if argCount != closure.Fn.Arity {
		return vm.runtimeError("expected %d arguments but got %d", closure.Fn.Arity, argCount)
	}
	if vm.frameCount == compiler.FramesMax {
		return vm.runtimeError("stack overflow")
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = vm.stackTop - argCount - 1
	return nil
}

// captureUpvalue returns an open upvalue pointing at stack slot, reusing an
// existing one if the slot is already captured. The openUpvalues list is
// kept sorted by descending slot so closeUpvalues can stop at the first
// entry below its boundary.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot > slot {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Slot == slot {
		return uv
	}

	created := &ObjUpvalue{stack: &vm.stack, Slot: slot}
	vm.gc.track(created)
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stack slot last,
// copying each one's value out of the stack so it survives after the
// owning scope's slots are reused.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		uv := vm.openUpvalues
		uv.close()
		vm.openUpvalues = uv.Next
	}
}
