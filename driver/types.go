package driver

// Handle is an opaque reference to a native OpenCL object
// (cl_platform_id, cl_device_id, cl_context, cl_program, cl_kernel,
// cl_mem or cl_command_queue).
//
// The zero Handle never identifies a live object.
type Handle uintptr

// PlatformInfo selects a clGetPlatformInfo query.
type PlatformInfo uint32

// Platform queries.
const (
	PlatformProfile    PlatformInfo = 0x0900
	PlatformVersion    PlatformInfo = 0x0901
	PlatformName       PlatformInfo = 0x0902
	PlatformVendor     PlatformInfo = 0x0903
	PlatformExtensions PlatformInfo = 0x0904
)

// DeviceType is a cl_device_type bitfield.
type DeviceType uint64

// Device types.
const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeCustom      DeviceType = 1 << 4
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

// String returns a human-readable device type.
func (t DeviceType) String() string {
	switch {
	case t == DeviceTypeAll:
		return "all"
	case t&DeviceTypeGPU != 0:
		return "gpu"
	case t&DeviceTypeCPU != 0:
		return "cpu"
	case t&DeviceTypeAccelerator != 0:
		return "accelerator"
	case t&DeviceTypeCustom != 0:
		return "custom"
	case t&DeviceTypeDefault != 0:
		return "default"
	default:
		return "unknown"
	}
}

// DeviceInfo selects a clGetDeviceInfo query.
type DeviceInfo uint32

// Device queries.
const (
	DeviceTypeInfo          DeviceInfo = 0x1000
	DeviceVendorID          DeviceInfo = 0x1001
	DeviceMaxComputeUnits   DeviceInfo = 0x1002
	DeviceMaxWorkItemDims   DeviceInfo = 0x1003
	DeviceMaxWorkGroupSize  DeviceInfo = 0x1004
	DeviceMaxWorkItemSizes  DeviceInfo = 0x1005
	DeviceMaxClockFrequency DeviceInfo = 0x100C
	DeviceAddressBits       DeviceInfo = 0x100D
	DeviceMaxMemAllocSize   DeviceInfo = 0x1010
	DeviceGlobalMemSize     DeviceInfo = 0x101F
	DeviceLocalMemSize      DeviceInfo = 0x1023
	DeviceAvailable         DeviceInfo = 0x1027
	DeviceCompilerAvailable DeviceInfo = 0x1028
	DeviceName              DeviceInfo = 0x102B
	DeviceVendor            DeviceInfo = 0x102C
	DeviceDriverVersion     DeviceInfo = 0x102D
	DeviceProfile           DeviceInfo = 0x102E
	DeviceVersion           DeviceInfo = 0x102F
	DeviceExtensions        DeviceInfo = 0x1030
	DevicePlatform          DeviceInfo = 0x1031
	DeviceOpenCLCVersion    DeviceInfo = 0x103D
	DeviceBuiltInKernels    DeviceInfo = 0x103F
)

// ProgramInfo selects a clGetProgramInfo query.
type ProgramInfo uint32

// Program queries.
const (
	ProgramReferenceCount ProgramInfo = 0x1160
	ProgramContext        ProgramInfo = 0x1161
	ProgramNumDevices     ProgramInfo = 0x1162
	ProgramDevices        ProgramInfo = 0x1163
	ProgramSource         ProgramInfo = 0x1164
	ProgramNumKernels     ProgramInfo = 0x1167
	ProgramKernelNames    ProgramInfo = 0x1168
)

// ProgramBuildInfo selects a clGetProgramBuildInfo query.
type ProgramBuildInfo uint32

// Program build queries.
const (
	ProgramBuildStatus  ProgramBuildInfo = 0x1181
	ProgramBuildOptions ProgramBuildInfo = 0x1182
	ProgramBuildLog     ProgramBuildInfo = 0x1183
)

// BuildStatus is a cl_build_status value.
type BuildStatus int32

// Build states.
const (
	BuildSuccess    BuildStatus = 0
	BuildNone       BuildStatus = -1
	BuildError      BuildStatus = -2
	BuildInProgress BuildStatus = -3
)

// String returns the build status name.
func (s BuildStatus) String() string {
	switch s {
	case BuildSuccess:
		return "success"
	case BuildNone:
		return "none"
	case BuildError:
		return "error"
	case BuildInProgress:
		return "in-progress"
	default:
		return "unknown"
	}
}

// KernelInfo selects a clGetKernelInfo query.
type KernelInfo uint32

// Kernel queries.
const (
	KernelFunctionName   KernelInfo = 0x1190
	KernelNumArgs        KernelInfo = 0x1191
	KernelReferenceCount KernelInfo = 0x1192
	KernelContext        KernelInfo = 0x1193
	KernelProgram        KernelInfo = 0x1194
	KernelAttributes     KernelInfo = 0x1195
)

// MemFlags is a cl_mem_flags bitfield.
type MemFlags uint64

// Memory flags.
const (
	MemReadWrite     MemFlags = 1 << 0
	MemWriteOnly     MemFlags = 1 << 1
	MemReadOnly      MemFlags = 1 << 2
	MemUseHostPtr    MemFlags = 1 << 3
	MemAllocHostPtr  MemFlags = 1 << 4
	MemCopyHostPtr   MemFlags = 1 << 5
	MemHostWriteOnly MemFlags = 1 << 7
	MemHostReadOnly  MemFlags = 1 << 8
	MemHostNoAccess  MemFlags = 1 << 9
)

// Has reports whether all bits of f2 are set in f.
func (f MemFlags) Has(f2 MemFlags) bool {
	return f&f2 == f2
}

// MemObjectType is a cl_mem_object_type value.
type MemObjectType uint32

// Memory object types.
const (
	MemObjectBuffer        MemObjectType = 0x10F0
	MemObjectImage2D       MemObjectType = 0x10F1
	MemObjectImage3D       MemObjectType = 0x10F2
	MemObjectImage2DArray  MemObjectType = 0x10F3
	MemObjectImage1D       MemObjectType = 0x10F4
	MemObjectImage1DArray  MemObjectType = 0x10F5
	MemObjectImage1DBuffer MemObjectType = 0x10F6
	MemObjectPipe          MemObjectType = 0x10F7
)

// MemInfo selects a clGetMemObjectInfo query.
type MemInfo uint32

// Memory object queries.
const (
	MemType           MemInfo = 0x1100
	MemFlagsInfo      MemInfo = 0x1101
	MemSize           MemInfo = 0x1102
	MemHostPtr        MemInfo = 0x1103
	MemMapCount       MemInfo = 0x1104
	MemReferenceCount MemInfo = 0x1105
	MemContext        MemInfo = 0x1106
)

// ChannelOrder is a cl_channel_order value.
type ChannelOrder uint32

// Channel orders.
const (
	ChannelR    ChannelOrder = 0x10B0
	ChannelA    ChannelOrder = 0x10B1
	ChannelRG   ChannelOrder = 0x10B2
	ChannelRA   ChannelOrder = 0x10B3
	ChannelRGB  ChannelOrder = 0x10B4
	ChannelRGBA ChannelOrder = 0x10B5
	ChannelBGRA ChannelOrder = 0x10B6
)

// ChannelType is a cl_channel_type value.
type ChannelType uint32

// Channel data types.
const (
	ChannelUnormInt8    ChannelType = 0x10D2
	ChannelUnormInt16   ChannelType = 0x10D3
	ChannelSignedInt32  ChannelType = 0x10D9
	ChannelUnsignedInt8 ChannelType = 0x10DA
	ChannelFloat        ChannelType = 0x10DE
)

// ImageFormat mirrors cl_image_format.
type ImageFormat struct {
	Order ChannelOrder
	Type  ChannelType
}

// PixelSize returns the number of bytes per pixel, or 0 for
// unsupported combinations.
func (f ImageFormat) PixelSize() int {
	var channels int
	switch f.Order {
	case ChannelR, ChannelA:
		channels = 1
	case ChannelRG, ChannelRA:
		channels = 2
	case ChannelRGB:
		channels = 3
	case ChannelRGBA, ChannelBGRA:
		channels = 4
	default:
		return 0
	}
	switch f.Type {
	case ChannelUnormInt8, ChannelUnsignedInt8:
		return channels
	case ChannelUnormInt16:
		return channels * 2
	case ChannelSignedInt32, ChannelFloat:
		return channels * 4
	default:
		return 0
	}
}

// ImageDesc mirrors the fields of cl_image_desc used by this package.
type ImageDesc struct {
	Type      MemObjectType
	Width     int
	Height    int
	Depth     int
	ArraySize int
	RowPitch  int
}

// QueueProperties is a cl_command_queue_properties bitfield.
type QueueProperties uint64

// Queue properties.
const (
	QueueOutOfOrderExec QueueProperties = 1 << 0
	QueueProfiling      QueueProperties = 1 << 1
)
