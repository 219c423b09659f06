// Package x86 decodes and emulates a subset of the Intel 8086 instruction
// set: MOV, ADD, SUB, CMP and the twenty conditional/loop short jumps.
//
// Decode splits a raw byte stream into a DecodedProgram (see Decode).
// Emulate replays a DecodedProgram against a fresh ProcessorState (see
// NewEmulator and Emulator.Run). Print renders a DecodedProgram back to
// NASM-syntax assembly text (see Instruction.String).
package x86
