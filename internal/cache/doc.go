// Package cache 保存挂载点的构建产物。
//
// 内存层是按挂载划分的 LRU，单飞（single-flight）保证同一个键同时至多只有一个构建；
// 可选的磁盘层把产物写入 StoragePath/<mount>-<hash>/<key>.bundle（临时文件 + rename），
// LRU 淘汰后的产物可以直接从磁盘恢复而无需重新构建。失败的构建从不写入任何一层。
package cache
