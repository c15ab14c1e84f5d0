package listing

import (
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add([]byte("-rw-r--r--   1 user  group     1024 Dec 20 10:30 file.txt\n"))
	f.Add([]byte("drwxr-xr-x   2 user  group     4096 Dec 20 10:30 mydir\r\n"))
	f.Add([]byte("09-24-24  10:30AM       <DIR>          logger\n"))
	f.Add([]byte("12-14-23  12:22PM           1037794 large-document.pdf"))
	f.Add([]byte("+i8388621.48594,m825718503,r,s280,\tdjb.html\n"))
	f.Add([]byte("type=file;size=1;modify=20231220143000; x\n"))
	f.Add([]byte("crw-rw-rw-   1 root  root    1,   3 Dec 20 10:30 null\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		offset := 0
		for steps := 0; ; steps++ {
			n, _ := Decode(data[offset:])
			if n < 0 || n > len(data)-offset {
				t.Fatalf("Decode consumed %d of %d bytes", n, len(data)-offset)
			}
			if n == 0 {
				return
			}
			offset += n
			if steps > len(data) {
				t.Fatal("Decode did not make progress")
			}
		}
	})
}
