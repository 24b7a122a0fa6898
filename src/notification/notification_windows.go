//go:build windows

package notification

import (
	"errors"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32                = syscall.NewLazyDLL("user32.dll")
	procDrawText          = user32.NewProc("DrawTextW")
	procPostThreadMessage = user32.NewProc("PostThreadMessageW")
)

const (
	wsExNoActivate = 0x08000000
	wsExToolWindow = 0x00000080
	wsExTopmost    = 0x00000008
	wsExClientEdge = 0x00000200

	dtCenter    = 0x00000001
	dtWordBreak = 0x00000010

	wmRequest = win.WM_USER + 10

	timerToastClose = 1
	toastLifetimeMs = 3000

	toastW, toastH     = 400, 100
	overlayW, overlayH = 520, 80

	popupClassName = "CapCutBypassPopupClass"
)

type requestKind int

const (
	reqToast requestKind = iota
	reqOverlayShow
	reqOverlayClose
)

type request struct {
	kind requestKind
	text string
}

// All popup windows are owned by one locked OS thread with its own message
// loop. Other goroutines hand it work through requests and a thread message.
var (
	uiOnce     sync.Once
	uiThreadID uint32
	uiErr      error
	requests   = make(chan request, 16)

	textMu      sync.Mutex
	windowTexts = map[win.HWND]string{}

	// Touched only on the UI thread.
	toastHwnd   win.HWND
	overlayHwnd win.HWND
)

// ShowBlockingError displays a modal, blocking error dialog and returns after user dismisses it.
func ShowBlockingError(title, message string) {
	messageBox(title, message, win.MB_OK|win.MB_ICONERROR|win.MB_SYSTEMMODAL)
}

// ShowInfo displays a modal information dialog.
func ShowInfo(title, message string) {
	messageBox(title, message, win.MB_OK|win.MB_ICONINFORMATION|win.MB_SETFOREGROUND)
}

// AskYesNo shows a topmost Yes/No question and reports whether Yes was chosen.
func AskYesNo(title, message string) bool {
	ret := messageBox(title, message, win.MB_YESNO|win.MB_ICONQUESTION|win.MB_SYSTEMMODAL|win.MB_SETFOREGROUND)
	return ret == win.IDYES
}

func messageBox(title, message string, flags uint32) int32 {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	msgPtr, _ := syscall.UTF16PtrFromString(message)
	return win.MessageBox(0, msgPtr, titlePtr, flags)
}

func showToast(text string) error   { return post(request{kind: reqToast, text: text}) }
func showOverlay(text string) error { return post(request{kind: reqOverlayShow, text: text}) }
func closeOverlay() error           { return post(request{kind: reqOverlayClose}) }

func post(r request) error {
	if err := startUIThread(); err != nil {
		return err
	}
	select {
	case requests <- r:
	default:
		if r.kind == reqToast {
			log.Printf("Popup: queue full, dropping toast")
			return nil
		}
		// Overlay requests must not be lost.
		requests <- r
	}
	ret, _, err := procPostThreadMessage.Call(uintptr(uiThreadID), wmRequest, 0, 0)
	if ret == 0 {
		return err
	}
	return nil
}

func startUIThread() error {
	uiOnce.Do(func() {
		ready := make(chan error, 1)
		go uiThread(ready)
		uiErr = <-ready
	})
	return uiErr
}

func uiThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Popup thread panic: %v", r)
		}
	}()

	if err := registerPopupClass(); err != nil {
		ready <- err
		return
	}

	// Force creation of the thread message queue before anyone posts to it.
	var msg win.MSG
	win.PeekMessage(&msg, 0, win.WM_USER, win.WM_USER, win.PM_NOREMOVE)
	uiThreadID = windows.GetCurrentThreadId()
	ready <- nil
	log.Printf("Popup: UI thread %d ready", uiThreadID)

	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			log.Printf("Popup: message loop ended (%d)", ret)
			return
		}
		if msg.HWnd == 0 && msg.Message == wmRequest {
			drainRequests()
			continue
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func drainRequests() {
	for {
		select {
		case r := <-requests:
			handle(r)
		default:
			return
		}
	}
}

func handle(r request) {
	switch r.kind {
	case reqToast:
		if toastHwnd != 0 {
			win.DestroyWindow(toastHwnd)
		}
		screenH := win.GetSystemMetrics(win.SM_CYSCREEN)
		toastHwnd = createPopup(r.text, 20, screenH-toastH-20, toastW, toastH)
		if toastHwnd != 0 {
			win.SetTimer(toastHwnd, timerToastClose, toastLifetimeMs, 0)
		}

	case reqOverlayShow:
		if overlayHwnd != 0 {
			setText(overlayHwnd, r.text)
			win.InvalidateRect(overlayHwnd, nil, true)
			return
		}
		screenW := win.GetSystemMetrics(win.SM_CXSCREEN)
		overlayHwnd = createPopup(r.text, (screenW-overlayW)/2, 40, overlayW, overlayH)

	case reqOverlayClose:
		if overlayHwnd != 0 {
			win.DestroyWindow(overlayHwnd)
		}
	}
}

func registerPopupClass() error {
	className, _ := syscall.UTF16PtrFromString(popupClassName)
	wc := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(wndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW)),
		HbrBackground: win.HBRUSH(win.COLOR_INFOBK + 1),
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wc); atom == 0 {
		return errors.New("RegisterClassEx failed for popup class")
	}
	return nil
}

func createPopup(text string, x, y, w, h int32) win.HWND {
	className, _ := syscall.UTF16PtrFromString(popupClassName)
	windowName, _ := syscall.UTF16PtrFromString("CapCut Bypass")

	hwnd := win.CreateWindowEx(
		wsExNoActivate|wsExToolWindow|wsExTopmost|wsExClientEdge,
		className,
		windowName,
		win.WS_POPUP|win.WS_VISIBLE,
		x, y, w, h,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		log.Printf("Popup: CreateWindowEx failed")
		return 0
	}
	setText(hwnd, text)
	win.SetWindowPos(hwnd, win.HWND_TOPMOST, 0, 0, 0, 0, win.SWP_NOACTIVATE|win.SWP_NOMOVE|win.SWP_NOSIZE)
	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	win.UpdateWindow(hwnd)
	return hwnd
}

func setText(hwnd win.HWND, text string) {
	textMu.Lock()
	windowTexts[hwnd] = text
	textMu.Unlock()
}

func textOf(hwnd win.HWND) string {
	textMu.Lock()
	defer textMu.Unlock()
	return windowTexts[hwnd]
}

func wndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		var rc win.RECT
		win.GetClientRect(hwnd, &rc)
		rc.Left += 10
		rc.Top += 10
		rc.Right -= 10
		rc.Bottom -= 10
		format := uintptr(dtWordBreak)
		if hwnd == overlayHwnd {
			format |= dtCenter
		}
		textPtr, _ := syscall.UTF16PtrFromString(textOf(hwnd))
		win.SetBkMode(hdc, win.TRANSPARENT)
		procDrawText.Call(uintptr(hdc), uintptr(unsafe.Pointer(textPtr)), uintptr(^uint32(0)), uintptr(unsafe.Pointer(&rc)), format)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_TIMER:
		if wParam == timerToastClose {
			win.KillTimer(hwnd, timerToastClose)
			win.DestroyWindow(hwnd)
			return 0
		}

	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN:
		// Toasts close on click; the overlay stays until its scope ends.
		if hwnd == toastHwnd {
			win.DestroyWindow(hwnd)
			return 0
		}

	case win.WM_DESTROY:
		textMu.Lock()
		delete(windowTexts, hwnd)
		textMu.Unlock()
		if hwnd == toastHwnd {
			toastHwnd = 0
		}
		if hwnd == overlayHwnd {
			overlayHwnd = 0
		}
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
