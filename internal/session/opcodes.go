/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * PTP/MTP operation and response codes
 */

package session

// Op is a PTP/MTP operation code, sent as the Code field of a command
// container.
type Op uint16

// Operation codes used by the device façade, per spec.md §4.4.
const (
	OpGetDeviceInfo       Op = 0x1001
	OpOpenSession         Op = 0x1002
	OpCloseSession        Op = 0x1003
	OpGetStorageIDs       Op = 0x1004
	OpGetStorageInfo      Op = 0x1005
	OpGetObjectHandles    Op = 0x1007
	OpGetObjectInfo       Op = 0x1008
	OpGetObject           Op = 0x1009
	OpDeleteObject        Op = 0x100B
	OpSendObjectInfo      Op = 0x100C
	OpSendObject          Op = 0x100D
	OpMoveObject          Op = 0x1019
	OpGetPartialObject    Op = 0x101B
	OpGetObjectPropList   Op = 0x9805
	OpSendPartialObject   Op = 0x95C1
	OpGetPartialObject64  Op = 0x95C4
)

// RespCode is a PTP/MTP response code, echoed in a response
// container's Code field.
type RespCode uint16

// Response codes named in spec.md §7.
const (
	RespOK                    RespCode = 0x2001
	RespGeneralError          RespCode = 0x2002
	RespSessionNotOpen        RespCode = 0x2003
	RespInvalidTransactionID  RespCode = 0x2004
	RespOperationNotSupported RespCode = 0x2005
	RespParameterNotSupported RespCode = 0x2006
	RespInvalidParameter      RespCode = 0x2009
	RespAccessDenied          RespCode = 0x2011
	RespStoreFull             RespCode = 0x200B
	RespStoreReadOnly         RespCode = 0x200C
	RespDeviceBusy            RespCode = 0x2019
)

// ProtocolError does not enumerate every device-specific response
// code as a named constant; callers needing a human label for a code
// not listed above fall through String()'s default case and still get
// the raw numeric code via ProtocolError.Code.

// String renders a response code for diagnostics and ProtocolError
// messages.
func (r RespCode) String() string {
	switch r {
	case RespOK:
		return "OK"
	case RespGeneralError:
		return "general error"
	case RespSessionNotOpen:
		return "session not open"
	case RespInvalidTransactionID:
		return "invalid transaction ID"
	case RespOperationNotSupported:
		return "operation not supported"
	case RespParameterNotSupported:
		return "parameter not supported"
	case RespInvalidParameter:
		return "invalid parameter"
	case RespAccessDenied:
		return "access denied"
	case RespStoreFull:
		return "store full"
	case RespStoreReadOnly:
		return "store read-only"
	case RespDeviceBusy:
		return "device busy"
	}
	return "unknown response code"
}

// FormatAssociation is the MTP object format code denoting a folder.
const FormatAssociation uint16 = 0x3001

// RootHandle is the reserved parent-handle value denoting the root of
// a storage in get-object-handles.
const RootHandle uint32 = 0xFFFFFFFF
