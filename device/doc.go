// Package device provides reference raw block devices for blockcache.
//
// Every device implements blockcache.Device: it reads and writes whole
// clusters addressed in units of its sector size.
//
//   - Memory: sparse in-process device, for tests
//   - File: disk image or block device through pread/pwrite
//   - Blob: one object per cluster in a blobstore.Store, framed by codec
//   - Faulty: wraps another device and injects errors
//
// Devices are deliberately naive; they do no scheduling or readahead.
package device
