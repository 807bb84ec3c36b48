package gpu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Result mirrors ze_result_t.
type Result uint32

const (
	ResultSuccess                           Result = 0
	ResultNotReady                          Result = 1
	ResultErrorDeviceLost                   Result = 0x70000001
	ResultErrorOutOfHostMemory              Result = 0x70000002
	ResultErrorOutOfDeviceMemory            Result = 0x70000003
	ResultErrorModuleBuildFailure           Result = 0x70000004
	ResultErrorModuleLinkFailure            Result = 0x70000005
	ResultErrorInsufficientPermissions      Result = 0x70010000
	ResultErrorNotAvailable                 Result = 0x70010001
	ResultErrorDependencyUnavailable        Result = 0x70020000
	ResultErrorUninitialized                Result = 0x78000001
	ResultErrorUnsupportedVersion           Result = 0x78000002
	ResultErrorUnsupportedFeature           Result = 0x78000003
	ResultErrorInvalidArgument              Result = 0x78000004
	ResultErrorInvalidNullHandle            Result = 0x78000005
	ResultErrorHandleObjectInUse            Result = 0x78000006
	ResultErrorInvalidNullPointer           Result = 0x78000007
	ResultErrorInvalidSize                  Result = 0x78000008
	ResultErrorUnsupportedSize              Result = 0x78000009
	ResultErrorUnsupportedAlignment         Result = 0x7800000a
	ResultErrorInvalidSynchronizationObject Result = 0x7800000b
	ResultErrorInvalidEnumeration           Result = 0x7800000c
	ResultErrorUnsupportedEnumeration       Result = 0x7800000d
	ResultErrorUnsupportedImageFormat       Result = 0x7800000e
	ResultErrorInvalidNativeBinary          Result = 0x7800000f
	ResultErrorInvalidGlobalName            Result = 0x78000010
	ResultErrorInvalidKernelName            Result = 0x78000011
	ResultErrorInvalidFunctionName          Result = 0x78000012
	ResultErrorInvalidGroupSizeDimension    Result = 0x78000013
	ResultErrorInvalidGlobalWidthDimension  Result = 0x78000014
	ResultErrorInvalidKernelArgumentIndex   Result = 0x78000015
	ResultErrorInvalidKernelArgumentSize    Result = 0x78000016
	ResultErrorInvalidKernelAttributeValue  Result = 0x78000017
	ResultErrorInvalidModuleUnlinked        Result = 0x78000018
	ResultErrorInvalidCommandListType       Result = 0x78000019
	ResultErrorOverlappingRegions           Result = 0x7800001a
	ResultErrorUnknown                      Result = 0x7ffffffe
)

var resultNames = map[Result]string{
	ResultSuccess:                           "ZE_RESULT_SUCCESS",
	ResultNotReady:                          "ZE_RESULT_NOT_READY",
	ResultErrorDeviceLost:                   "ZE_RESULT_ERROR_DEVICE_LOST",
	ResultErrorOutOfHostMemory:              "ZE_RESULT_ERROR_OUT_OF_HOST_MEMORY",
	ResultErrorOutOfDeviceMemory:            "ZE_RESULT_ERROR_OUT_OF_DEVICE_MEMORY",
	ResultErrorModuleBuildFailure:           "ZE_RESULT_ERROR_MODULE_BUILD_FAILURE",
	ResultErrorModuleLinkFailure:            "ZE_RESULT_ERROR_MODULE_LINK_FAILURE",
	ResultErrorInsufficientPermissions:      "ZE_RESULT_ERROR_INSUFFICIENT_PERMISSIONS",
	ResultErrorNotAvailable:                 "ZE_RESULT_ERROR_NOT_AVAILABLE",
	ResultErrorDependencyUnavailable:        "ZE_RESULT_ERROR_DEPENDENCY_UNAVAILABLE",
	ResultErrorUninitialized:                "ZE_RESULT_ERROR_UNINITIALIZED",
	ResultErrorUnsupportedVersion:           "ZE_RESULT_ERROR_UNSUPPORTED_VERSION",
	ResultErrorUnsupportedFeature:           "ZE_RESULT_ERROR_UNSUPPORTED_FEATURE",
	ResultErrorInvalidArgument:              "ZE_RESULT_ERROR_INVALID_ARGUMENT",
	ResultErrorInvalidNullHandle:            "ZE_RESULT_ERROR_INVALID_NULL_HANDLE",
	ResultErrorHandleObjectInUse:            "ZE_RESULT_ERROR_HANDLE_OBJECT_IN_USE",
	ResultErrorInvalidNullPointer:           "ZE_RESULT_ERROR_INVALID_NULL_POINTER",
	ResultErrorInvalidSize:                  "ZE_RESULT_ERROR_INVALID_SIZE",
	ResultErrorUnsupportedSize:              "ZE_RESULT_ERROR_UNSUPPORTED_SIZE",
	ResultErrorUnsupportedAlignment:         "ZE_RESULT_ERROR_UNSUPPORTED_ALIGNMENT",
	ResultErrorInvalidSynchronizationObject: "ZE_RESULT_ERROR_INVALID_SYNCHRONIZATION_OBJECT",
	ResultErrorInvalidEnumeration:           "ZE_RESULT_ERROR_INVALID_ENUMERATION",
	ResultErrorUnsupportedEnumeration:       "ZE_RESULT_ERROR_UNSUPPORTED_ENUMERATION",
	ResultErrorUnsupportedImageFormat:       "ZE_RESULT_ERROR_UNSUPPORTED_IMAGE_FORMAT",
	ResultErrorInvalidNativeBinary:          "ZE_RESULT_ERROR_INVALID_NATIVE_BINARY",
	ResultErrorInvalidGlobalName:            "ZE_RESULT_ERROR_INVALID_GLOBAL_NAME",
	ResultErrorInvalidKernelName:            "ZE_RESULT_ERROR_INVALID_KERNEL_NAME",
	ResultErrorInvalidFunctionName:          "ZE_RESULT_ERROR_INVALID_FUNCTION_NAME",
	ResultErrorInvalidGroupSizeDimension:    "ZE_RESULT_ERROR_INVALID_GROUP_SIZE_DIMENSION",
	ResultErrorInvalidGlobalWidthDimension:  "ZE_RESULT_ERROR_INVALID_GLOBAL_WIDTH_DIMENSION",
	ResultErrorInvalidKernelArgumentIndex:   "ZE_RESULT_ERROR_INVALID_KERNEL_ARGUMENT_INDEX",
	ResultErrorInvalidKernelArgumentSize:    "ZE_RESULT_ERROR_INVALID_KERNEL_ARGUMENT_SIZE",
	ResultErrorInvalidKernelAttributeValue:  "ZE_RESULT_ERROR_INVALID_KERNEL_ATTRIBUTE_VALUE",
	ResultErrorInvalidModuleUnlinked:        "ZE_RESULT_ERROR_INVALID_MODULE_UNLINKED",
	ResultErrorInvalidCommandListType:       "ZE_RESULT_ERROR_INVALID_COMMAND_LIST_TYPE",
	ResultErrorOverlappingRegions:           "ZE_RESULT_ERROR_OVERLAPPING_REGIONS",
	ResultErrorUnknown:                      "ZE_RESULT_ERROR_UNKNOWN",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ZE_RESULT_0x%x", uint32(r))
}

// ResultError is returned when a driver call does not return ZE_RESULT_SUCCESS.
type ResultError struct {
	Call     string
	Code     Result
	BuildLog string
}

func (e *ResultError) Error() string {
	msg := fmt.Sprintf("%s: %s (0x%x)", e.Call, e.Code, uint32(e.Code))
	if e.BuildLog != "" {
		msg += "\n" + e.BuildLog
	}
	return msg
}

// resultError wraps a non-success code with a stack trace. It returns nil for
// ResultSuccess so call sites can return it directly.
func resultError(call string, code Result) error {
	if code == ResultSuccess {
		return nil
	}
	return errors.WithStack(&ResultError{Call: call, Code: code})
}

// IsResult reports whether err carries the given driver result code.
func IsResult(err error, code Result) bool {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// CodeOf returns the driver result code carried by err, ResultSuccess for nil
// and ResultErrorUnknown for errors that did not come from the driver layer.
func CodeOf(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code
	}
	return ResultErrorUnknown
}
