package ecg

import "github.com/bft-labs/ecgsync/pkg/transport"

// Requests sent to the server.
const (
	EventGetList                 transport.Event = "ECG_GET_LIST"
	EventGetAnnotationList       transport.Event = "ECG_GET_ANNOTATION_LIST"
	EventGetCommonAnnotationList transport.Event = "ECG_GET_COMMON_ANNOTATION_LIST"
	EventGetItemData             transport.Event = "ECG_GET_ITEM_DATA"
	EventSetAnnotation           transport.Event = "ECG_SET_ANNOTATION"
	EventDumpSignals             transport.Event = "ECG_DUMP_SIGNALS"
)

// Responses and notifications received from the server.
const (
	EventGotList                 transport.Event = "ECG_GOT_LIST"
	EventGotAnnotationList       transport.Event = "ECG_GOT_ANNOTATION_LIST"
	EventGotCommonAnnotationList transport.Event = "ECG_GOT_COMMON_ANNOTATION_LIST"
	EventGotItemData             transport.Event = "ECG_GOT_ITEM_DATA"
	EventError                   transport.Event = "ERROR"
	EventServerReady             transport.Event = "SERVER_READY"
)
