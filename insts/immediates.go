package insts

import "github.com/sarchlab/rvjit/imm"

type seg = imm.Segment

// Immediate descriptors of the 32-bit base formats.
var (
	// ImmI: imm[11:0] = inst[31:20]
	ImmI = imm.MustDescriptor(12, true, 0,
		seg{SrcHi: 31, SrcLo: 20, DstHi: 11, DstLo: 0})

	// ImmS: imm[11:5] = inst[31:25], imm[4:0] = inst[11:7]
	ImmS = imm.MustDescriptor(12, true, 0,
		seg{SrcHi: 31, SrcLo: 25, DstHi: 11, DstLo: 5},
		seg{SrcHi: 11, SrcLo: 7, DstHi: 4, DstLo: 0})

	// ImmB: imm[12|10:5] = inst[31:25], imm[4:1|11] = inst[11:7]
	ImmB = imm.MustDescriptor(13, true, 1,
		seg{SrcHi: 31, SrcLo: 31, DstHi: 12, DstLo: 12},
		seg{SrcHi: 30, SrcLo: 25, DstHi: 10, DstLo: 5},
		seg{SrcHi: 11, SrcLo: 8, DstHi: 4, DstLo: 1},
		seg{SrcHi: 7, SrcLo: 7, DstHi: 11, DstLo: 11})

	// ImmU: imm[31:12] = inst[31:12]
	ImmU = imm.MustDescriptor(32, true, 12,
		seg{SrcHi: 31, SrcLo: 12, DstHi: 31, DstLo: 12})

	// ImmJ: imm[20|10:1|11|19:12] = inst[31:12]
	ImmJ = imm.MustDescriptor(21, true, 1,
		seg{SrcHi: 31, SrcLo: 31, DstHi: 20, DstLo: 20},
		seg{SrcHi: 30, SrcLo: 21, DstHi: 10, DstLo: 1},
		seg{SrcHi: 20, SrcLo: 20, DstHi: 11, DstLo: 11},
		seg{SrcHi: 19, SrcLo: 12, DstHi: 19, DstLo: 12})

	// Shamt5: shamt[4:0] = inst[24:20]
	Shamt5 = imm.MustDescriptor(5, false, 0,
		seg{SrcHi: 24, SrcLo: 20, DstHi: 4, DstLo: 0})

	// Shamt6: shamt[5:0] = inst[25:20]
	Shamt6 = imm.MustDescriptor(6, false, 0,
		seg{SrcHi: 25, SrcLo: 20, DstHi: 5, DstLo: 0})
)

// Immediate descriptors of the compressed formats, over a 16-bit parcel.
var (
	// ImmCI: imm[5] = inst[12], imm[4:0] = inst[6:2]
	ImmCI = imm.MustDescriptor(6, true, 0,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 5, DstLo: 5},
		seg{SrcHi: 6, SrcLo: 2, DstHi: 4, DstLo: 0})

	// ShamtC: shamt[5] = inst[12], shamt[4:0] = inst[6:2]
	ShamtC = imm.MustDescriptor(6, false, 0,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 5, DstLo: 5},
		seg{SrcHi: 6, SrcLo: 2, DstHi: 4, DstLo: 0})

	// ImmCLUI: nzimm[17] = inst[12], nzimm[16:12] = inst[6:2]
	ImmCLUI = imm.MustDescriptor(18, true, 12,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 17, DstLo: 17},
		seg{SrcHi: 6, SrcLo: 2, DstHi: 16, DstLo: 12})

	// ImmCADDI16SP: nzimm[9] = inst[12], nzimm[4|6|8:7|5] = inst[6:2]
	ImmCADDI16SP = imm.MustDescriptor(10, true, 4,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 9, DstLo: 9},
		seg{SrcHi: 6, SrcLo: 6, DstHi: 4, DstLo: 4},
		seg{SrcHi: 5, SrcLo: 5, DstHi: 6, DstLo: 6},
		seg{SrcHi: 4, SrcLo: 3, DstHi: 8, DstLo: 7},
		seg{SrcHi: 2, SrcLo: 2, DstHi: 5, DstLo: 5})

	// ImmCIW: nzuimm[5:4|9:6|2|3] = inst[12:5]
	ImmCIW = imm.MustDescriptor(10, false, 2,
		seg{SrcHi: 12, SrcLo: 11, DstHi: 5, DstLo: 4},
		seg{SrcHi: 10, SrcLo: 7, DstHi: 9, DstLo: 6},
		seg{SrcHi: 6, SrcLo: 6, DstHi: 2, DstLo: 2},
		seg{SrcHi: 5, SrcLo: 5, DstHi: 3, DstLo: 3})

	// ImmCLW: uimm[5:3] = inst[12:10], uimm[2|6] = inst[6:5]
	ImmCLW = imm.MustDescriptor(7, false, 2,
		seg{SrcHi: 12, SrcLo: 10, DstHi: 5, DstLo: 3},
		seg{SrcHi: 6, SrcLo: 6, DstHi: 2, DstLo: 2},
		seg{SrcHi: 5, SrcLo: 5, DstHi: 6, DstLo: 6})

	// ImmCLD: uimm[5:3] = inst[12:10], uimm[7:6] = inst[6:5]
	ImmCLD = imm.MustDescriptor(8, false, 3,
		seg{SrcHi: 12, SrcLo: 10, DstHi: 5, DstLo: 3},
		seg{SrcHi: 6, SrcLo: 5, DstHi: 7, DstLo: 6})

	// ImmCLWSP: uimm[5] = inst[12], uimm[4:2|7:6] = inst[6:2]
	ImmCLWSP = imm.MustDescriptor(8, false, 2,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 5, DstLo: 5},
		seg{SrcHi: 6, SrcLo: 4, DstHi: 4, DstLo: 2},
		seg{SrcHi: 3, SrcLo: 2, DstHi: 7, DstLo: 6})

	// ImmCLDSP: uimm[5] = inst[12], uimm[4:3|8:6] = inst[6:2]
	ImmCLDSP = imm.MustDescriptor(9, false, 3,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 5, DstLo: 5},
		seg{SrcHi: 6, SrcLo: 5, DstHi: 4, DstLo: 3},
		seg{SrcHi: 4, SrcLo: 2, DstHi: 8, DstLo: 6})

	// ImmCSWSP: uimm[5:2|7:6] = inst[12:7]
	ImmCSWSP = imm.MustDescriptor(8, false, 2,
		seg{SrcHi: 12, SrcLo: 9, DstHi: 5, DstLo: 2},
		seg{SrcHi: 8, SrcLo: 7, DstHi: 7, DstLo: 6})

	// ImmCSDSP: uimm[5:3|8:6] = inst[12:7]
	ImmCSDSP = imm.MustDescriptor(9, false, 3,
		seg{SrcHi: 12, SrcLo: 10, DstHi: 5, DstLo: 3},
		seg{SrcHi: 9, SrcLo: 7, DstHi: 8, DstLo: 6})

	// ImmCJ: offset[11|4|9:8|10|6|7|3:1|5] = inst[12:2]
	ImmCJ = imm.MustDescriptor(12, true, 1,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 11, DstLo: 11},
		seg{SrcHi: 11, SrcLo: 11, DstHi: 4, DstLo: 4},
		seg{SrcHi: 10, SrcLo: 9, DstHi: 9, DstLo: 8},
		seg{SrcHi: 8, SrcLo: 8, DstHi: 10, DstLo: 10},
		seg{SrcHi: 7, SrcLo: 7, DstHi: 6, DstLo: 6},
		seg{SrcHi: 6, SrcLo: 6, DstHi: 7, DstLo: 7},
		seg{SrcHi: 5, SrcLo: 3, DstHi: 3, DstLo: 1},
		seg{SrcHi: 2, SrcLo: 2, DstHi: 5, DstLo: 5})

	// ImmCB: offset[8|4:3] = inst[12:10], offset[7:6|2:1|5] = inst[6:2]
	ImmCB = imm.MustDescriptor(9, true, 1,
		seg{SrcHi: 12, SrcLo: 12, DstHi: 8, DstLo: 8},
		seg{SrcHi: 11, SrcLo: 10, DstHi: 4, DstLo: 3},
		seg{SrcHi: 6, SrcLo: 5, DstHi: 7, DstLo: 6},
		seg{SrcHi: 4, SrcLo: 3, DstHi: 2, DstLo: 1},
		seg{SrcHi: 2, SrcLo: 2, DstHi: 5, DstLo: 5})
)
