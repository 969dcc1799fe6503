package device

import "testing"

func TestObjectInfoRoundTrip(t *testing.T) {
	want := ObjectInfo{
		StorageID:            0x00010001,
		ObjectFormat:         0x3000, // undefined/generic file
		ObjectCompressedSize: 4096,
		ParentObject:         0xFFFFFFFF,
		Filename:             "notes.txt",
		ModificationDate:     "20260101T000000",
	}

	encoded := EncodeObjectInfo(want)
	got, err := DecodeObjectInfo(encoded)
	if err != nil {
		t.Fatalf("DecodeObjectInfo: %s", err)
	}

	if got.StorageID != want.StorageID || got.ObjectFormat != want.ObjectFormat ||
		got.ObjectCompressedSize != want.ObjectCompressedSize || got.ParentObject != want.ParentObject ||
		got.Filename != want.Filename || got.ModificationDate != want.ModificationDate {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestObjectInfoIsFolder(t *testing.T) {
	folder := ObjectInfo{ObjectFormat: 0x3001}
	if !folder.IsFolder() {
		t.Fatal("expected format 0x3001 to report as a folder")
	}
	file := ObjectInfo{ObjectFormat: 0x3000}
	if file.IsFolder() {
		t.Fatal("expected a non-association format to not report as a folder")
	}
}

func TestDecodeStorageInfo(t *testing.T) {
	// Hand-assembled per the StorageInfo dataset layout: two u16s, a
	// u16, two u64s, a u32, then two strings.
	b := []byte{}
	b = appendU16(b, 0x0003) // StorageType: removable RAM
	b = appendU16(b, 0x0002) // FilesystemType: generic hierarchical
	b = appendU16(b, 0x0000) // AccessCapability: read-write
	b = append(b, make([]byte, 8)...)
	b = append(b, make([]byte, 8)...)
	b = append(b, make([]byte, 4)...)
	b = append(b, 0) // empty description
	b = append(b, 0) // empty volume label

	info, err := DecodeStorageInfo(b)
	if err != nil {
		t.Fatalf("DecodeStorageInfo: %s", err)
	}
	if info.ReadOnly() {
		t.Fatal("expected AccessCapability=0 to report writable")
	}

	b2 := append([]byte{}, b...)
	b2[4] = 1 // AccessCapability: read-only
	info2, err := DecodeStorageInfo(b2)
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ReadOnly() {
		t.Fatal("expected AccessCapability=1 to report read-only")
	}
}
